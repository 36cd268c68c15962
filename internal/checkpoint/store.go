// Package checkpoint persists partial transcription state so an interrupted
// job can resume without redoing finished audio.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voicetransor/internal/domain"
)

// Checkpoint is one durable snapshot of transcription progress.
type Checkpoint struct {
	Key                    Key              `json:"key"`
	CompletedOffsetSeconds float64          `json:"completedOffsetSeconds"`
	DurationSeconds        float64          `json:"durationSeconds"`
	Segments               []domain.Segment `json:"segments"`
	LastUpdated            time.Time        `json:"lastUpdated"`
}

// FileStore keeps one JSON file per key. Writes go to a temp file that is
// renamed into place, so readers never see a partial snapshot.
type FileStore struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewFileStore creates a store rooted at dir. The directory is created lazily.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// Dir returns the directory holding checkpoint files.
func (s *FileStore) Dir() string {
	return s.dir
}

// Load returns the checkpoint stored for key. found is false when nothing
// is stored or the stored key does not match exactly.
func (s *FileStore) Load(key Key) (Checkpoint, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("%w: read checkpoint: %w", domain.ErrIO, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("%w: decode checkpoint: %w", domain.ErrIO, err)
	}
	if cp.Key != key {
		return Checkpoint{}, false, nil
	}

	return cp, true, nil
}

// Save overwrites the snapshot for key.
func (s *FileStore) Save(key Key, cp Checkpoint) error {
	cp.Key = key
	if cp.LastUpdated.IsZero() {
		cp.LastUpdated = s.now().UTC()
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create checkpoint dir: %w", domain.ErrIO, err)
	}
	if err := writeFileAtomic(s.dir, s.path(key), data); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return nil
}

// Clear removes the snapshot for key. Missing snapshots are not an error.
func (s *FileStore) Clear(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove checkpoint: %w", domain.ErrIO, err)
	}
	return nil
}

// Prune deletes snapshots last updated before cutoff, plus temp files
// abandoned before cutoff. It returns the number of removed snapshots.
func (s *FileStore) Prune(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: list checkpoints: %w", domain.ErrIO, err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())

		if strings.HasSuffix(entry.Name(), ".tmp") {
			info, err := entry.Info()
			if err == nil && info.ModTime().Before(cutoff) {
				_ = os.Remove(path)
			}
			continue
		}
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		stale, err := lastUpdatedBefore(path, cutoff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !stale {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: prune checkpoints: %w", domain.ErrIO, errors.Join(errs...))
	}
	return removed, nil
}

func (s *FileStore) path(key Key) string {
	return filepath.Join(s.dir, key.ID()+".json")
}

// lastUpdatedBefore reports whether the snapshot at path is older than cutoff.
// Unreadable snapshots fall back to the file modification time.
func lastUpdatedBefore(path string, cutoff time.Time) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil || cp.LastUpdated.IsZero() {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return false, statErr
		}
		return info.ModTime().Before(cutoff), nil
	}
	return cp.LastUpdated.Before(cutoff), nil
}

// writeFileAtomic writes data next to target and renames it into place.
func writeFileAtomic(dir, target string, data []byte) error {
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move checkpoint into place: %w", err)
	}
	return nil
}
