package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"voicetransor/internal/domain"
)

// EnvPrefix namespaces environment overrides, e.g. VOICETRANSOR_MODEL.
const EnvPrefix = "VOICETRANSOR"

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore persists settings in a single JSON file on disk. Values missing
// from the file fall back to defaults and VOICETRANSOR_* variables override both.
type JSONStore struct {
	path     string
	validate *validator.Validate
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, validate: validator.New()}
}

// Path returns the settings file location.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads settings from disk or returns defaults when missing.
func (s *JSONStore) Load() (domain.Settings, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range settingsMap(DefaultSettings()) {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return domain.Settings{}, fmt.Errorf("read settings %s: %w", s.path, err)
		}
	}

	var cfg domain.Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(cfg); err != nil {
		return domain.Settings{}, err
	}
	return cfg, nil
}

// Save validates cfg and writes it as JSON, creating parent directories.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := s.Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("json")
	for key, value := range settingsMap(cfg) {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	return nil
}

// Validate checks field constraints and wraps failures in ErrInvalidInput.
func (s *JSONStore) Validate(cfg domain.Settings) error {
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: settings: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// ignored so the binaries run without one.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}
