package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"voicetransor/internal/domain"
	"voicetransor/internal/export"
)

// ExportTranscript writes content as text. An empty path uses a timestamped
// name in the output directory. It returns the written path.
func (a *App) ExportTranscript(path, content string) (string, error) {
	svc, err := a.svc()
	if err != nil {
		return "", err
	}
	target := a.exportPath(path, export.DefaultTranscriptName)
	if err := svc.Exporter.WriteText(target, content); err != nil {
		return "", err
	}
	return target, nil
}

// ExportSRT writes the segments of the last completed transcription as SRT.
func (a *App) ExportSRT(path string) (string, error) {
	svc, err := a.svc()
	if err != nil {
		return "", err
	}

	state := a.CurrentJob()
	if state.Kind != domain.JobKindTranscription || state.Result == nil {
		return "", fmt.Errorf("%w: no finished transcription to export", domain.ErrNotFound)
	}

	target := a.exportPath(path, func(dir string, now time.Time) string {
		return strings.TrimSuffix(export.DefaultTranscriptName(dir, now), ".txt") + ".srt"
	})
	if err := svc.Exporter.WriteSRT(target, state.Result.Segments); err != nil {
		return "", err
	}
	return target, nil
}

// ExportResultPDF writes a text-operation result as PDF.
func (a *App) ExportResultPDF(path, title, content string) (string, error) {
	svc, err := a.svc()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(title) == "" {
		title = "VoiceTransor Result"
	}
	target := a.exportPath(path, export.DefaultResultName)
	if err := svc.Exporter.WritePDF(target, title, content); err != nil {
		return "", err
	}
	return target, nil
}

func (a *App) exportPath(path string, defaultName func(string, time.Time) string) string {
	if target := strings.TrimSpace(path); target != "" {
		return target
	}
	a.mu.Lock()
	dir := a.settings.OutputDir
	a.mu.Unlock()
	return defaultName(dir, time.Now())
}
