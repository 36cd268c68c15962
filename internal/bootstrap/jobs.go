package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voicetransor/internal/domain"
	"voicetransor/internal/jobs"
	"voicetransor/internal/presets"
	"voicetransor/internal/services"
)

// StartTranscription submits a transcription of inputPath with the current
// settings. It fails with domain.ErrBusy while another job is active.
func (a *App) StartTranscription(inputPath string) (domain.JobState, error) {
	a.mu.Lock()
	settings := a.settings
	a.mu.Unlock()

	return a.submit(services.TranscriptionDescriptor(settings, strings.TrimSpace(inputPath)))
}

// StartTextOperation runs prompt over input with the configured LLM backend.
func (a *App) StartTextOperation(prompt, input string) (domain.JobState, error) {
	return a.submit(services.TextOperationDescriptor(prompt, input))
}

// StartPresetOperation runs a saved or built-in preset over input.
func (a *App) StartPresetOperation(presetName, input string) (domain.JobState, error) {
	preset, err := a.lookupPreset(presetName)
	if err != nil {
		return domain.JobState{}, err
	}
	return a.StartTextOperation(preset.PromptText, input)
}

// CancelJob asks the active job to stop.
func (a *App) CancelJob() error {
	a.mu.Lock()
	h := a.current
	svc := a.services
	a.mu.Unlock()

	if h == nil || svc == nil {
		return domain.ErrNotRunning
	}
	return svc.Runner.Cancel(h)
}

// CurrentJob returns the most recent job state.
func (a *App) CurrentJob() domain.JobState {
	a.mu.Lock()
	h := a.current
	a.mu.Unlock()

	if h == nil {
		return domain.JobState{}
	}
	return h.State()
}

// JobEvents returns forwarded job events with feed sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// CheckTextService probes the configured LLM backend.
func (a *App) CheckTextService() (domain.HealthStatus, error) {
	svc, err := a.svc()
	if err != nil {
		return domain.HealthStatus{}, err
	}
	return svc.Runner.CheckTextService(context.Background())
}

// submit rebuilds stale services when idle, submits desc and starts
// forwarding its events.
func (a *App) submit(desc domain.JobDescriptor) (domain.JobState, error) {
	a.mu.Lock()
	stale := a.stale
	settings := a.settings
	a.mu.Unlock()

	if stale && !a.jobActive() {
		if err := a.install(settings); err != nil {
			return domain.JobState{}, err
		}
	}

	svc, err := a.svc()
	if err != nil {
		return domain.JobState{}, err
	}
	h, err := svc.Runner.Submit(desc)
	if err != nil {
		return domain.JobState{}, err
	}

	a.mu.Lock()
	a.current = h
	a.mu.Unlock()

	events := svc.Runner.Subscribe(context.Background(), h)
	go a.forwardJobEvents(events)
	return h.State(), nil
}

// forwardJobEvents copies one job's stream into the feed and the UI.
func (a *App) forwardJobEvents(events <-chan jobs.Event) {
	for event := range events {
		a.emit("job:event", event)
		a.events.Publish(event)
		if event.Terminal() {
			a.logger.Info("job finished", "job_id", event.JobID, "type", event.Type)
		}
	}
}

// jobActive reports whether the current job has not reached a terminal state.
func (a *App) jobActive() bool {
	a.mu.Lock()
	h := a.current
	a.mu.Unlock()
	return h != nil && h.State().Status.Active()
}

// lookupPreset resolves user presets first, then built-ins.
func (a *App) lookupPreset(name string) (domain.Preset, error) {
	svc, err := a.svc()
	if err != nil {
		return domain.Preset{}, err
	}

	preset, err := svc.Presets.Get(context.Background(), name)
	if err == nil {
		return preset, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Preset{}, err
	}
	if builtin, ok := presets.LookupBuiltin(name); ok {
		return builtin, nil
	}
	return domain.Preset{}, fmt.Errorf("preset %q: %w", name, domain.ErrNotFound)
}
