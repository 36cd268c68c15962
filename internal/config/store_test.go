package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"voicetransor/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present and valid.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Language != "auto" || cfg.Device != "auto" {
		t.Fatalf("language/device = %q/%q, want auto", cfg.Language, cfg.Device)
	}
	if cfg.ModelsDir == "" || cfg.CheckpointDir == "" || cfg.PresetDB == "" {
		t.Fatalf("expected non-empty paths, got %+v", cfg)
	}
	if err := NewJSONStore("unused.json").Validate(cfg); err != nil {
		t.Fatalf("defaults fail validation: %v", err)
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := DefaultSettings()
	want.ModelsDir = "/models"
	want.Model = "small"
	want.Language = "de"
	want.Device = "cpu"
	want.IncludeTimestamps = false
	want.ChunkSeconds = 45
	want.TextBackend = "openai"
	want.OpenAIAPIKey = "sk-test"
	want.ETAWindow = 8

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStorePartialFileKeepsDefaults fills unset keys from defaults.
func TestJSONStorePartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"model":"tiny","chunk_seconds":12.5}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Model != "tiny" || got.ChunkSeconds != 12.5 {
		t.Fatalf("file values = %q %v", got.Model, got.ChunkSeconds)
	}
	if got.OllamaURL != DefaultSettings().OllamaURL {
		t.Fatalf("ollama url = %q, want default", got.OllamaURL)
	}
}

// TestJSONStoreEnvOverrides applies VOICETRANSOR_* variables over the file.
func TestJSONStoreEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"model":"tiny"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("VOICETRANSOR_MODEL", "medium")
	t.Setenv("VOICETRANSOR_ETA_WINDOW", "9")

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Model != "medium" || got.ETAWindow != 9 {
		t.Fatalf("model/eta = %q/%d, want medium/9", got.Model, got.ETAWindow)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestJSONStoreSaveRejectsInvalidSettings keeps bad values off disk.
func TestJSONStoreSaveRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewJSONStore(path)

	cfg := DefaultSettings()
	cfg.Device = "tpu"
	if err := store.Save(cfg); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Save() error = %v, want ErrInvalidInput", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("settings file should not exist, stat err = %v", err)
	}
}

// TestLoadDotEnvIgnoresMissingFiles sets variables only from files that exist.
func TestLoadDotEnvIgnoresMissingFiles(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("VOICETRANSOR_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("VOICETRANSOR_TEST_DOTENV", "")
	os.Unsetenv("VOICETRANSOR_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("VOICETRANSOR_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("env = %q, want loaded", got)
	}
}
