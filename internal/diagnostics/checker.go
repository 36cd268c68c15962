// Package diagnostics runs startup checks for external tools, the model cache
// and the writable directories the app depends on.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"voicetransor/internal/domain"
	"voicetransor/internal/transcribe"
)

// ModelLocator reports whether a whisper model is present locally.
type ModelLocator interface {
	CheckAvailability(name string) (domain.ModelAvailability, error)
}

// HealthChecker probes the text-operation backend.
type HealthChecker interface {
	Health(ctx context.Context) (domain.HealthStatus, error)
}

// Checker validates external tools and required filesystem paths.
type Checker struct {
	tools      transcribe.Tools
	models     ModelLocator
	text       HealthChecker
	lookPath   func(string) (string, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies. models and text may
// be nil to skip those checks.
func NewChecker(tools transcribe.Tools, models ModelLocator, text HealthChecker) *Checker {
	return &Checker{
		tools:      tools,
		models:     models,
		text:       text,
		lookPath:   exec.LookPath,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	tools transcribe.Tools,
	models ModelLocator,
	text HealthChecker,
	lookPath func(string) (string, error),
) *Checker {
	c := NewChecker(tools, models, text)
	c.lookPath = lookPath
	return c
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg", c.tools.FFmpeg),
		c.checkTool("ffprobe", c.tools.FFprobe),
		c.checkTool("whisper.cpp", c.tools.Whisper),
		c.checkModel(settings.Model),
		c.checkWritableDir("output_dir", "Output directory", settings.OutputDir),
		c.checkWritableDir("checkpoint_dir", "Checkpoint directory", settings.CheckpointDir),
	}
	if c.text != nil {
		items = append(items, c.checkTextService(ctx, settings.TextBackend))
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(name, binary string) domain.DiagnosticItem {
	if strings.TrimSpace(binary) == "" {
		binary = name
	}
	path, err := c.lookPath(binary)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + name,
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", binary),
			Hint:    "Install it and ensure the binary is available on PATH before starting a transcription job.",
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + name,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModel reports whether the selected whisper model is in the cache.
func (c *Checker) checkModel(model string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model",
		Name: "Whisper model",
	}

	if strings.TrimSpace(model) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No whisper model selected."
		item.Hint = "Pick a model in settings."
		return item
	}
	if c.models == nil {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Model %s selected; cache not checked.", model)
		return item
	}

	availability, err := c.models.CheckAvailability(model)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, domain.ErrNotFound) {
			item.Message = fmt.Sprintf("Unknown whisper model: %s", model)
			item.Hint = "Choose one of the models listed in the model catalog."
		} else {
			item.Message = fmt.Sprintf("Cannot check model cache: %v", err)
		}
		return item
	}
	if !availability.IsCached {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Model %s is not downloaded (cache: %s).", availability.ModelName, availability.CacheDir)
		item.Hint = "Download the model before starting a transcription job."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Model file found: %s", availability.LocalPath)
	return item
}

// checkWritableDir validates directory existence and write access.
func (c *Checker) checkWritableDir(id, name, dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   id,
		Name: name,
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = name + " is empty."
		item.Hint = "Set a directory where files can be written."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkTextService probes the configured LLM backend. Text operations are
// optional, so an unreachable backend only warns.
func (c *Checker) checkTextService(ctx context.Context, backend string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "text_service",
		Name: "Text service (" + backend + ")",
	}

	status, err := c.text.Health(ctx)
	if err != nil || !status.OK {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = status.Message
		if item.Message == "" && err != nil {
			item.Message = err.Error()
		}
		item.Hint = "Start the text service or update its URL and API key in settings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = status.Message
	return item
}
