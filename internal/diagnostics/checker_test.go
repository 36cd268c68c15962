package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"voicetransor/internal/domain"
	"voicetransor/internal/transcribe"
)

// fakeModels answers availability from a fixed set of cached names.
type fakeModels struct {
	cached map[string]string
}

func (f fakeModels) CheckAvailability(name string) (domain.ModelAvailability, error) {
	if name == "unknown" {
		return domain.ModelAvailability{ModelName: name}, fmt.Errorf("model %q: %w", name, domain.ErrNotFound)
	}
	path, ok := f.cached[name]
	return domain.ModelAvailability{ModelName: name, CacheDir: "/cache", IsCached: ok, LocalPath: path}, nil
}

// fakeHealth returns a canned health result.
type fakeHealth struct {
	status domain.HealthStatus
	err    error
}

func (f fakeHealth) Health(context.Context) (domain.HealthStatus, error) {
	return f.status, f.err
}

func foundTool(name string) (string, error) { return "/usr/local/bin/" + name, nil }

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(
		transcribe.DefaultTools(),
		fakeModels{cached: map[string]string{"base": "/cache/ggml-base.bin"}},
		fakeHealth{status: domain.HealthStatus{OK: true, Backend: "ollama", Message: "Ollama is running."}},
		foundTool,
	)

	report := checker.Run(context.Background(), domain.Settings{
		Model:         "base",
		OutputDir:     filepath.Join(root, "output"),
		CheckpointDir: filepath.Join(root, "checkpoints"),
		TextBackend:   "ollama",
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	assertStatusByID(t, report, "text_service", domain.DiagnosticStatusPass)
}

// TestCheckerRunMissingToolsAndPaths validates failure reporting.
func TestCheckerRunMissingToolsAndPaths(t *testing.T) {
	var looked []string
	checker := NewCheckerForTests(
		transcribe.Tools{FFmpeg: "/opt/ffmpeg", FFprobe: "ffprobe", Whisper: "whisper-cli"},
		fakeModels{},
		nil,
		func(name string) (string, error) {
			looked = append(looked, name)
			return "", errors.New("not found")
		},
	)

	report := checker.Run(context.Background(), domain.Settings{
		Model:     "base",
		OutputDir: "",
	})

	if !report.HasFailures {
		t.Fatal("expected failures")
	}

	assertStatusByID(t, report, "tool_ffmpeg", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "tool_ffprobe", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "tool_whisper.cpp", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "model", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "output_dir", domain.DiagnosticStatusFail)
	assertStatusByID(t, report, "checkpoint_dir", domain.DiagnosticStatusFail)

	if len(looked) != 3 || looked[0] != "/opt/ffmpeg" || looked[2] != "whisper-cli" {
		t.Fatalf("looked up = %v", looked)
	}
	for _, item := range report.Items {
		if item.ID == "text_service" {
			t.Fatal("text service check should be skipped without a health checker")
		}
	}
}

// TestCheckerRunUnknownModelFails distinguishes unknown from missing models.
func TestCheckerRunUnknownModelFails(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(transcribe.DefaultTools(), fakeModels{}, nil, foundTool)

	report := checker.Run(context.Background(), domain.Settings{
		Model:         "unknown",
		OutputDir:     root,
		CheckpointDir: root,
	})

	item := itemByID(t, report, "model")
	if item.Status != domain.DiagnosticStatusFail || item.Message != "Unknown whisper model: unknown" {
		t.Fatalf("model item = %+v", item)
	}
}

// TestCheckerRunTextServiceDown warns with the backend message.
func TestCheckerRunTextServiceDown(t *testing.T) {
	root := t.TempDir()
	checker := NewCheckerForTests(
		transcribe.DefaultTools(),
		fakeModels{cached: map[string]string{"base": "/cache/ggml-base.bin"}},
		fakeHealth{status: domain.HealthStatus{Backend: "ollama"}, err: errors.New("cannot connect to Ollama")},
		foundTool,
	)

	report := checker.Run(context.Background(), domain.Settings{
		Model:         "base",
		OutputDir:     root,
		CheckpointDir: root,
		TextBackend:   "ollama",
	})

	item := itemByID(t, report, "text_service")
	if item.Status != domain.DiagnosticStatusWarn || item.Message != "cannot connect to Ollama" {
		t.Fatalf("text service item = %+v", item)
	}
	if report.HasFailures {
		t.Fatalf("an unreachable text service should only warn, got %+v", report.Items)
	}
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	if item := itemByID(t, report, id); item.Status != want {
		t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
	}
}

func itemByID(t *testing.T, report domain.DiagnosticReport, id string) domain.DiagnosticItem {
	t.Helper()
	item, ok := report.Item(id)
	if !ok {
		t.Fatalf("diagnostic item not found: %s", id)
	}
	return item
}
