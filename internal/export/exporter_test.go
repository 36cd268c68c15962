package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicetransor/internal/domain"
)

// TestWriteTextCreatesParentDirs writes into a directory that does not exist yet.
func TestWriteTextCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "transcript.txt")

	if err := NewFileExporter("").WriteText(path, "hello\nworld\n"); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello\nworld\n" {
		t.Fatalf("content = %q", got)
	}
}

// TestWriteSRTRendersCues writes numbered cues with SRT timestamps.
func TestWriteSRTRendersCues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk.srt")
	segments := []domain.Segment{{Start: 0, End: 1.5, Text: "Hello"}, {Start: 61, End: 62.25, Text: "again"}}

	if err := NewFileExporter("").WriteSRT(path, segments); err != nil {
		t.Fatalf("WriteSRT() error = %v", err)
	}
	got, _ := os.ReadFile(path)
	if !strings.Contains(string(got), "00:01:01,000 --> 00:01:02,250") {
		t.Fatalf("srt = %q", got)
	}
}

// TestWritePDFProducesDocument checks the PDF header of a core-font document.
func TestWritePDFProducesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.pdf")

	err := NewFileExporter("").WritePDF(path, "Summary", "First line\r\nSecond line with café")
	if err != nil {
		t.Fatalf("WritePDF() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("missing PDF header: %q", data[:min(len(data), 16)])
	}
}

// TestWritePDFMissingFontIsIOFailure rejects an unreadable font before writing.
func TestWritePDFMissingFontIsIOFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.pdf")

	err := NewFileExporter(filepath.Join(dir, "missing.ttf")).WritePDF(path, "t", "body")
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("error = %v, want ErrIO", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("pdf should not exist, stat err = %v", statErr)
	}
}

// TestWriteTextUnwritablePathIsIOFailure maps filesystem errors to ErrIO.
func TestWriteTextUnwritablePathIsIOFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	err := NewFileExporter("").WriteText(filepath.Join(blocker, "out.txt"), "x")
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("error = %v, want ErrIO", err)
	}
	if err := NewFileExporter("").WriteText(" ", "x"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty path error = %v, want ErrInvalidInput", err)
	}
}

// TestDefaultNames uses the minute-resolution timestamp.
func TestDefaultNames(t *testing.T) {
	now := time.Date(2025, 3, 7, 9, 5, 30, 0, time.UTC)
	if got := DefaultTranscriptName("out", now); got != filepath.Join("out", "VoiceTransor_transcript_20250307_0905.txt") {
		t.Fatalf("transcript name = %q", got)
	}
	if got := DefaultResultName("out", now); got != filepath.Join("out", "VoiceTransor_result_20250307_0905.pdf") {
		t.Fatalf("result name = %q", got)
	}
}
