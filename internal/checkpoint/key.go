package checkpoint

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Fingerprint identifies an audio file by metadata rather than content.
type Fingerprint struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"modTime"`
}

// FingerprintFile stats path and builds its fingerprint from the absolute
// path, size and modification time in whole seconds.
func FingerprintFile(path string) (Fingerprint, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("resolve audio path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat audio file: %w", err)
	}
	if info.IsDir() {
		return Fingerprint{}, fmt.Errorf("audio path is a directory: %s", abs)
	}

	return Fingerprint{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
	}, nil
}

// Key is the full tuple a checkpoint is valid for. Any field mismatch means
// the checkpoint must not be reused.
type Key struct {
	Fingerprint       Fingerprint `json:"fingerprint"`
	Model             string      `json:"model"`
	Device            string      `json:"device"`
	Language          string      `json:"language"`
	IncludeTimestamps bool        `json:"includeTimestamps"`
	ChunkSeconds      float64     `json:"chunkSeconds"`
}

// ID returns the stable file name stem for the key.
func (k Key) ID() string {
	raw := k.Fingerprint.Path +
		"|" + strconv.FormatInt(k.Fingerprint.Size, 10) +
		"|" + strconv.FormatInt(k.Fingerprint.ModTime, 10) +
		"|" + k.Model +
		"|" + k.Device +
		"|" + k.Language +
		"|" + strconv.FormatBool(k.IncludeTimestamps) +
		"|" + strconv.FormatFloat(k.ChunkSeconds, 'f', -1, 64)

	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
