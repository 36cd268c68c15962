// Package services assembles the runner, stores and engines from settings.
// Both the desktop app and the CLI build on it.
package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"voicetransor/internal/checkpoint"
	"voicetransor/internal/diagnostics"
	"voicetransor/internal/domain"
	"voicetransor/internal/export"
	"voicetransor/internal/jobs"
	"voicetransor/internal/modelcache"
	"voicetransor/internal/presets"
	"voicetransor/internal/textops"
	"voicetransor/internal/transcribe"
)

// Services holds the long-lived components for one settings snapshot.
type Services struct {
	Settings    domain.Settings
	Models      *modelcache.Cache
	Checkpoints *checkpoint.FileStore
	Pruner      *checkpoint.Pruner
	Presets     *presets.Store
	Transcriber *transcribe.Engine
	TextEngine  jobs.TextOperationEngine
	Runner      *jobs.Runner
	Exporter    *export.FileExporter
	Checker     *diagnostics.Checker
}

// Options tune Build beyond what settings cover.
type Options struct {
	Logger *slog.Logger
	Tools  transcribe.Tools
	// OnCommand receives every ffmpeg/ffprobe/whisper invocation.
	OnCommand func(transcribe.CommandLog)
}

// Build opens the preset database and wires the runner. Close releases both.
func Build(settings domain.Settings, opts Options) (*Services, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tools := opts.Tools
	if tools == (transcribe.Tools{}) {
		tools = transcribe.DefaultTools()
	}

	presetStore, err := presets.Open(settings.PresetDB)
	if err != nil {
		return nil, fmt.Errorf("open presets: %w", err)
	}

	models := modelcache.New(settings.ModelsDir, time.Duration(settings.DownloadTimeoutMinutes)*time.Minute, logger)
	checkpoints := checkpoint.NewFileStore(settings.CheckpointDir)
	retention := time.Duration(settings.CheckpointRetentionDays) * 24 * time.Hour
	transcriber := transcribe.NewEngine(tools, opts.OnCommand)
	textEngine := NewTextEngine(settings)

	runner := jobs.NewRunner(jobs.Options{
		Transcriber:  transcriber,
		TextEngine:   textEngine,
		Checkpoints:  checkpoints,
		Models:       models,
		Logger:       logger,
		ETAWindow:    settings.ETAWindow,
		FlushSeconds: settings.CheckpointFlushSeconds,
	})

	return &Services{
		Settings:    settings,
		Models:      models,
		Checkpoints: checkpoints,
		Pruner:      checkpoint.NewPruner(checkpoints, retention, logger),
		Presets:     presetStore,
		Transcriber: transcriber,
		TextEngine:  textEngine,
		Runner:      runner,
		Exporter:    export.NewFileExporter(settings.PDFFontPath),
		Checker:     diagnostics.NewChecker(tools, models, textEngine),
	}, nil
}

// NewTextEngine picks the configured LLM backend.
func NewTextEngine(settings domain.Settings) jobs.TextOperationEngine {
	if settings.TextBackend == "openai" {
		apiKey := settings.OpenAIAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return textops.NewOpenAIEngine(settings.OpenAIURL, settings.OpenAIModel, apiKey)
	}
	return textops.NewOllamaEngine(settings.OllamaURL, settings.OllamaModel, settings.OllamaNumPredict)
}

// TranscriptionDescriptor builds a transcription job from settings.
func TranscriptionDescriptor(settings domain.Settings, audioPath string) domain.JobDescriptor {
	return domain.JobDescriptor{
		Kind: domain.JobKindTranscription,
		Transcription: &domain.TranscriptionParams{
			AudioPath:         audioPath,
			Model:             settings.Model,
			Device:            settings.Device,
			Language:          settings.Language,
			IncludeTimestamps: settings.IncludeTimestamps,
			ChunkSeconds:      settings.ChunkSeconds,
		},
	}
}

// TextOperationDescriptor builds a text-operation job.
func TextOperationDescriptor(prompt, input string) domain.JobDescriptor {
	return domain.JobDescriptor{
		Kind:          domain.JobKindTextOperation,
		TextOperation: &domain.TextOperationParams{Prompt: prompt, Input: input},
	}
}

// Close stops the runner, pruner and model downloads and closes the preset
// database.
func (s *Services) Close() error {
	s.Pruner.Stop()
	s.Runner.Close()
	s.Models.Close()
	return s.Presets.Close()
}

// EnsureLocalBinOnPATH prepends <appDir>/bin to PATH so tools installed next
// to the settings file are found.
func EnsureLocalBinOnPATH(appDir string) error {
	binDir := filepath.Join(appDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}
