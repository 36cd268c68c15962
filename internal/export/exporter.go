// Package export writes transcripts and text-operation results to disk.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"voicetransor/internal/domain"
	"voicetransor/internal/transcript"
)

const (
	pageMarginMM  = 20
	titleFontSize = 18
	bodyFontSize  = 11
	bodyLineMM    = 5.5
	fontFamily    = "body"
)

// FileExporter writes text, SRT and PDF files. FontPath, when set, points at a
// TTF file embedded into PDFs so CJK and other non-Latin text renders.
type FileExporter struct {
	FontPath string
}

// NewFileExporter returns an exporter using the optional UTF-8 font.
func NewFileExporter(fontPath string) *FileExporter {
	return &FileExporter{FontPath: strings.TrimSpace(fontPath)}
}

// WriteText writes content as UTF-8 text.
func (e *FileExporter) WriteText(path, content string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrIO, path, err)
	}
	return nil
}

// WriteSRT renders segments as SubRip and writes them to path.
func (e *FileExporter) WriteSRT(path string, segments []domain.Segment) error {
	return e.WriteText(path, transcript.SRT(segments))
}

// WritePDF writes an A4 document with a title line and the body text.
func (e *FileExporter) WritePDF(path, title, content string) error {
	if err := ensureParent(path); err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMarginMM, pageMarginMM, pageMarginMM)
	pdf.SetAutoPageBreak(true, pageMarginMM)
	pdf.SetTitle(title, true)
	pdf.SetCreator("VoiceTransor", true)

	family := "Helvetica"
	translate := func(s string) string { return s }
	if e.FontPath != "" {
		if _, err := os.Stat(e.FontPath); err != nil {
			return fmt.Errorf("%w: pdf font %s: %v", domain.ErrIO, e.FontPath, err)
		}
		pdf.AddUTF8Font(fontFamily, "", e.FontPath)
		family = fontFamily
	} else {
		translate = pdf.UnicodeTranslatorFromDescriptor("")
	}

	pdf.AddPage()
	pdf.SetFont(family, "", titleFontSize)
	pdf.MultiCell(0, titleFontSize*0.5, translate(title), "", "L", false)
	pdf.Ln(8)

	pdf.SetFont(family, "", bodyFontSize)
	body := strings.ReplaceAll(content, "\r\n", "\n")
	pdf.MultiCell(0, bodyLineMM, translate(body), "", "L", false)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("%w: write pdf %s: %v", domain.ErrIO, path, err)
	}
	return nil
}

// DefaultTranscriptName returns dir/VoiceTransor_transcript_<stamp>.txt.
func DefaultTranscriptName(dir string, now time.Time) string {
	return filepath.Join(dir, "VoiceTransor_transcript_"+stamp(now)+".txt")
}

// DefaultResultName returns dir/VoiceTransor_result_<stamp>.pdf.
func DefaultResultName(dir string, now time.Time) string {
	return filepath.Join(dir, "VoiceTransor_result_"+stamp(now)+".pdf")
}

func stamp(now time.Time) string {
	return now.Format("20060102_1504")
}

func ensureParent(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: output path is required", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create output directory: %v", domain.ErrIO, err)
	}
	return nil
}
