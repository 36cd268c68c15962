package jobs

import (
	"context"
	"errors"
	"fmt"

	"voicetransor/internal/checkpoint"
	"voicetransor/internal/domain"
	"voicetransor/internal/transcript"
)

// transcriptionRun carries resume state for one transcription job.
type transcriptionRun struct {
	key       checkpoint.Key
	segments  []domain.Segment
	offset    float64
	duration  float64
	flushedAt float64
	// published counts segments already sent in Progress events.
	published int
}

func (r *Runner) runTranscription(ctx context.Context, j *job) (*domain.JobResult, error) {
	params := *j.desc.Transcription
	if params.ChunkSeconds <= 0 {
		params.ChunkSeconds = DefaultChunkSeconds
	}
	if params.Device == "" {
		params.Device = "auto"
	}

	fingerprint, err := checkpoint.FingerprintFile(params.AudioPath)
	if err != nil {
		return nil, &domain.EngineError{Category: "input", Message: err.Error(), Err: err}
	}

	req := domain.TranscriptionRequest{
		AudioPath:         fingerprint.Path,
		Model:             params.Model,
		Device:            params.Device,
		Language:          params.Language,
		IncludeTimestamps: params.IncludeTimestamps,
		ChunkSeconds:      params.ChunkSeconds,
	}
	if r.models != nil {
		availability, err := r.models.CheckAvailability(params.Model)
		if err != nil {
			return nil, &domain.EngineError{Category: "model", Message: err.Error(), Err: err}
		}
		if !availability.IsCached {
			return nil, &domain.EngineError{
				Category: "model",
				Message:  fmt.Sprintf("model %q is not downloaded", params.Model),
				Err:      domain.ErrNotFound,
			}
		}
		req.ModelPath = availability.LocalPath
	}

	run := &transcriptionRun{
		key: checkpoint.Key{
			Fingerprint:       fingerprint,
			Model:             params.Model,
			Device:            params.Device,
			Language:          params.Language,
			IncludeTimestamps: params.IncludeTimestamps,
			ChunkSeconds:      params.ChunkSeconds,
		},
	}
	r.resume(j, run)
	req.ResumeFrom = run.offset

	emit := func(unit domain.TranscriptionUnit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if unit.OffsetSeconds < run.offset {
			return &domain.EngineError{
				Category: "engine",
				Message:  fmt.Sprintf("offset moved backwards: %.3f < %.3f", unit.OffsetSeconds, run.offset),
			}
		}

		run.segments = append(run.segments, unit.Segments...)
		run.offset = unit.OffsetSeconds
		if unit.DurationSeconds > 0 {
			run.duration = unit.DurationSeconds
		}

		if run.offset-run.flushedAt >= r.flushSeconds {
			r.saveCheckpoint(j, run)
		}
		r.publishSegments(j, run)
		return nil
	}

	engineErr := r.transcriber.Transcribe(ctx, req, emit)
	if engineErr == nil {
		engineErr = ctx.Err()
	}
	if engineErr != nil {
		r.markFailed(j)
		if run.offset > run.flushedAt {
			r.saveCheckpoint(j, run)
		}
		if errors.Is(engineErr, context.Canceled) {
			return nil, engineErr
		}
		var typed *domain.EngineError
		if !errors.As(engineErr, &typed) {
			engineErr = &domain.EngineError{Category: "engine", Message: engineErr.Error(), Err: engineErr}
		}
		return nil, engineErr
	}

	if r.checkpoints != nil {
		if err := r.checkpoints.Clear(run.key); err != nil {
			r.logger.Warn("checkpoint clear failed", "job_id", j.id, "error", err)
		}
	}

	return &domain.JobResult{
		Kind:     domain.JobKindTranscription,
		Text:     transcript.Render(run.segments, params.IncludeTimestamps),
		Segments: run.segments,
	}, nil
}

// resume seeds run from a stored checkpoint with an identical key.
func (r *Runner) resume(j *job, run *transcriptionRun) {
	if r.checkpoints == nil {
		return
	}

	cp, found, err := r.checkpoints.Load(run.key)
	if err != nil {
		r.logger.Warn("checkpoint load failed, starting from zero", "job_id", j.id, "error", err)
		return
	}
	if !found || cp.CompletedOffsetSeconds <= 0 {
		return
	}

	run.segments = append([]domain.Segment(nil), cp.Segments...)
	run.offset = cp.CompletedOffsetSeconds
	run.duration = cp.DurationSeconds
	run.flushedAt = cp.CompletedOffsetSeconds

	r.logger.Info("resuming transcription from checkpoint",
		"job_id", j.id,
		"offset_seconds", run.offset,
		"segments", len(run.segments),
	)

	j.mu.Lock()
	j.eta.Seed(0, run.offset)
	j.mu.Unlock()
	if run.duration > 0 {
		r.publishSegments(j, run)
	}
}

// publishSegments reports progress along with every segment not yet sent.
// Resumed segments ride on the first Progress event of the run.
func (r *Runner) publishSegments(j *job, run *transcriptionRun) {
	if r.progress(j, run.offset, run.duration, run.segments[run.published:], "") {
		run.published = len(run.segments)
	}
}

// saveCheckpoint writes progress so far. Failures only degrade resume.
func (r *Runner) saveCheckpoint(j *job, run *transcriptionRun) {
	if r.checkpoints == nil {
		return
	}

	cp := checkpoint.Checkpoint{
		CompletedOffsetSeconds: run.offset,
		DurationSeconds:        run.duration,
		Segments:               run.segments,
	}
	if err := r.checkpoints.Save(run.key, cp); err != nil {
		r.logger.Warn("checkpoint save failed", "job_id", j.id, "offset_seconds", run.offset, "error", err)
		return
	}
	run.flushedAt = run.offset
}
