// Package presets stores named prompt templates for text operations.
package presets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"voicetransor/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS presets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	prompt_text TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Store persists user presets in SQLite. Names are unique; listing order is
// insertion order.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu sync.Mutex
}

// Open opens or creates the preset database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create preset dir: %w", domain.ErrIO, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open preset db: %w", domain.ErrIO, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA busy_timeout=5000;`} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrIO, strings.TrimSuffix(pragma, ";"), err)
		}
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create preset schema: %w", domain.ErrIO, err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create adds a preset. It returns domain.ErrAlreadyExists when the name is
// taken and leaves the existing preset untouched.
func (s *Store) Create(ctx context.Context, name, promptText string) (domain.Preset, error) {
	name = strings.TrimSpace(name)
	promptText = strings.TrimSpace(promptText)
	if name == "" {
		return domain.Preset{}, fmt.Errorf("%w: preset name is required", domain.ErrInvalidInput)
	}
	if promptText == "" {
		return domain.Preset{}, fmt.Errorf("%w: preset prompt is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now().UTC().Truncate(time.Millisecond)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO presets (name, prompt_text, created_at) VALUES (?, ?, ?)`,
		name, promptText, createdAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Preset{}, fmt.Errorf("preset %q: %w", name, domain.ErrAlreadyExists)
		}
		return domain.Preset{}, fmt.Errorf("%w: insert preset: %w", domain.ErrIO, err)
	}

	return domain.Preset{Name: name, PromptText: promptText, CreatedAt: createdAt}, nil
}

// Update replaces the prompt text of an existing preset.
func (s *Store) Update(ctx context.Context, name, promptText string) error {
	name = strings.TrimSpace(name)
	promptText = strings.TrimSpace(promptText)
	if promptText == "" {
		return fmt.Errorf("%w: preset prompt is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE presets SET prompt_text = ? WHERE name = ?`, promptText, name)
	if err != nil {
		return fmt.Errorf("%w: update preset: %w", domain.ErrIO, err)
	}
	return requireAffected(res, name)
}

// Delete removes a preset permanently.
func (s *Store) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("%w: delete preset: %w", domain.ErrIO, err)
	}
	return requireAffected(res, name)
}

// Get returns one preset by name.
func (s *Store) Get(ctx context.Context, name string) (domain.Preset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, prompt_text, created_at FROM presets WHERE name = ?`,
		strings.TrimSpace(name),
	)

	preset, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Preset{}, fmt.Errorf("preset %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Preset{}, fmt.Errorf("%w: read preset: %w", domain.ErrIO, err)
	}
	return preset, nil
}

// List returns all user presets in insertion order.
func (s *Store) List(ctx context.Context) ([]domain.Preset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, prompt_text, created_at FROM presets ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list presets: %w", domain.ErrIO, err)
	}
	defer rows.Close()

	var out []domain.Preset
	for rows.Next() {
		preset, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan preset: %w", domain.ErrIO, err)
		}
		out = append(out, preset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list presets: %w", domain.ErrIO, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreset(row rowScanner) (domain.Preset, error) {
	var (
		preset    domain.Preset
		createdAt int64
	)
	if err := row.Scan(&preset.Name, &preset.PromptText, &createdAt); err != nil {
		return domain.Preset{}, err
	}
	preset.CreatedAt = time.UnixMilli(createdAt).UTC()
	return preset, nil
}

func requireAffected(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", domain.ErrIO, err)
	}
	if n == 0 {
		return fmt.Errorf("preset %q: %w", name, domain.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
