package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"voicetransor/internal/domain"
	"voicetransor/internal/modelcache"
)

// GetWhisperModels returns the model catalog with downloaded flags.
func (a *App) GetWhisperModels() ([]domain.WhisperModelOption, error) {
	svc, err := a.svc()
	if err != nil {
		return nil, err
	}
	return svc.Models.Models(), nil
}

// CheckModel reports whether a model is in the local cache.
func (a *App) CheckModel(modelID string) (domain.ModelAvailability, error) {
	svc, err := a.svc()
	if err != nil {
		return domain.ModelAvailability{}, err
	}
	return svc.Models.CheckAvailability(modelID)
}

// DownloadWhisperModel asks the user to confirm, then starts fetching the
// model. Progress arrives as "model:download" events. It returns the download
// ID, or "" when the user declined.
func (a *App) DownloadWhisperModel(modelID string) (string, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return "", fmt.Errorf("%w: model id is required", domain.ErrInvalidInput)
	}

	svc, err := a.svc()
	if err != nil {
		return "", err
	}
	model, found := svc.Models.Lookup(id)
	if !found {
		return "", fmt.Errorf("model %q: %w", id, domain.ErrNotFound)
	}

	ok, err := a.confirm("Download model",
		fmt.Sprintf("Whisper model %q (%s) is not downloaded. Download it to %s now?", model.Name, model.SizeLabel, svc.Models.Dir()))
	if err != nil {
		return "", fmt.Errorf("confirm download: %w", err)
	}
	if !ok {
		return "", nil
	}

	download, err := svc.Models.RequestDownload(id)
	if err != nil {
		return "", err
	}
	go a.forwardDownload(download)
	return download.ID, nil
}

// forwardDownload relays progress and refreshes diagnostics on completion.
func (a *App) forwardDownload(download *modelcache.Download) {
	for progress := range download.Subscribe(context.Background()) {
		a.emit("model:download", progress)
	}
	if err := download.Wait(context.Background()); err != nil {
		a.logger.Warn("model download failed", "model", download.Model, "error", err)
		return
	}

	a.mu.Lock()
	settings := a.settings
	a.mu.Unlock()
	a.refreshDiagnostics(settings)
}
