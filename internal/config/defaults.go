package config

import (
	"os"
	"path/filepath"

	"voicetransor/internal/domain"
)

const appDirName = ".voicetransor"

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	appDir := filepath.Join(homeDir, appDirName)

	return domain.Settings{
		ModelsDir:               filepath.Join(appDir, "models"),
		OutputDir:               filepath.Join(homeDir, "Documents", "VoiceTransor"),
		Model:                   "base",
		Language:                "auto",
		Device:                  "auto",
		IncludeTimestamps:       true,
		ChunkSeconds:            30,
		CheckpointDir:           filepath.Join(appDir, "checkpoints"),
		CheckpointFlushSeconds:  30,
		CheckpointRetentionDays: 14,
		CheckpointPruneSchedule: "@every 6h",
		PresetDB:                filepath.Join(appDir, "presets.db"),
		TextBackend:             "ollama",
		OllamaURL:               "http://localhost:11434",
		OllamaModel:             "llama3.1:8b",
		OllamaNumPredict:        1024,
		OpenAIURL:               "https://api.openai.com/v1",
		OpenAIModel:             "gpt-4o-mini",
		DownloadTimeoutMinutes:  45,
		ETAWindow:               5,
	}
}

// DefaultPath is the settings file used by both binaries.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName, "settings.json")
}

// settingsMap flattens cfg into viper keys.
func settingsMap(cfg domain.Settings) map[string]any {
	return map[string]any{
		"models_dir":                cfg.ModelsDir,
		"output_dir":                cfg.OutputDir,
		"model":                     cfg.Model,
		"language":                  cfg.Language,
		"device":                    cfg.Device,
		"include_timestamps":        cfg.IncludeTimestamps,
		"chunk_seconds":             cfg.ChunkSeconds,
		"checkpoint_dir":            cfg.CheckpointDir,
		"checkpoint_flush_seconds":  cfg.CheckpointFlushSeconds,
		"checkpoint_retention_days": cfg.CheckpointRetentionDays,
		"checkpoint_prune_schedule": cfg.CheckpointPruneSchedule,
		"preset_db":                 cfg.PresetDB,
		"text_backend":              cfg.TextBackend,
		"ollama_url":                cfg.OllamaURL,
		"ollama_model":              cfg.OllamaModel,
		"ollama_num_predict":        cfg.OllamaNumPredict,
		"openai_url":                cfg.OpenAIURL,
		"openai_model":              cfg.OpenAIModel,
		"openai_api_key":            cfg.OpenAIAPIKey,
		"pdf_font_path":             cfg.PDFFontPath,
		"download_timeout_minutes":  cfg.DownloadTimeoutMinutes,
		"eta_window":                cfg.ETAWindow,
	}
}
