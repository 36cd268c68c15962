// Package jobs runs one long-lived, cancellable background job at a time and
// streams its progress to subscribers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"voicetransor/internal/checkpoint"
	"voicetransor/internal/domain"
	"voicetransor/internal/eventlog"
)

// DefaultChunkSeconds is used when a transcription request leaves it unset.
const DefaultChunkSeconds = 30

const maxJobEvents = 4096

// ErrRunnerClosed is returned by Submit after Close.
var ErrRunnerClosed = errors.New("job runner closed")

// TranscriptionEngine turns audio into segments, reporting each finished unit
// through emit. A non-nil error from emit must stop the engine.
type TranscriptionEngine interface {
	Transcribe(ctx context.Context, req domain.TranscriptionRequest, emit func(domain.TranscriptionUnit) error) error
}

// TextOperationEngine runs a prompt over input text, streaming output chunks.
type TextOperationEngine interface {
	Run(ctx context.Context, req domain.TextRequest, emit func(domain.TextUnit) error) error
	Health(ctx context.Context) (domain.HealthStatus, error)
}

// CheckpointStore persists partial transcription progress.
type CheckpointStore interface {
	Load(key checkpoint.Key) (checkpoint.Checkpoint, bool, error)
	Save(key checkpoint.Key, cp checkpoint.Checkpoint) error
	Clear(key checkpoint.Key) error
}

// ModelLocator resolves a model name to a local file.
type ModelLocator interface {
	CheckAvailability(name string) (domain.ModelAvailability, error)
}

// Options wires engines and stores into a Runner. Nil engines disable the
// matching job kind.
type Options struct {
	Transcriber  TranscriptionEngine
	TextEngine   TextOperationEngine
	Checkpoints  CheckpointStore
	Models       ModelLocator
	Logger       *slog.Logger
	ETAWindow    int
	FlushSeconds float64
	Now          func() time.Time
}

// Runner owns the single active-job slot.
type Runner struct {
	transcriber  TranscriptionEngine
	textEngine   TextOperationEngine
	checkpoints  CheckpointStore
	models       ModelLocator
	logger       *slog.Logger
	etaWindow    int
	flushSeconds float64
	now          func() time.Time
	validate     *validator.Validate

	seq atomic.Uint64

	mu     sync.Mutex
	active *job
	closed bool
}

// NewRunner creates an idle runner.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	window := opts.ETAWindow
	if window < 1 {
		window = DefaultETAWindow
	}

	return &Runner{
		transcriber:  opts.Transcriber,
		textEngine:   opts.TextEngine,
		checkpoints:  opts.Checkpoints,
		models:       opts.Models,
		logger:       logger,
		etaWindow:    window,
		flushSeconds: opts.FlushSeconds,
		now:          now,
		validate:     validator.New(),
	}
}

// Handle references one submitted job.
type Handle struct {
	job *job
}

// ID returns the job identifier.
func (h *Handle) ID() string {
	return h.job.id
}

// State returns a snapshot of the job.
func (h *Handle) State() domain.JobState {
	return h.job.snapshot()
}

// Done is closed once the job's goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.job.done
}

// Submit validates the descriptor, claims the job slot and starts execution.
// It returns domain.ErrBusy while another job is active.
func (r *Runner) Submit(desc domain.JobDescriptor) (*Handle, error) {
	if err := r.validate.Struct(desc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	switch desc.Kind {
	case domain.JobKindTranscription:
		if r.transcriber == nil {
			return nil, fmt.Errorf("%w: no transcription engine configured", domain.ErrInvalidInput)
		}
	case domain.JobKindTextOperation:
		if r.textEngine == nil {
			return nil, fmt.Errorf("%w: no text engine configured", domain.ErrInvalidInput)
		}
	}
	if desc.SubmittedAt.IsZero() {
		desc.SubmittedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRunnerClosed
	}
	if r.active != nil && r.active.status().Active() {
		return nil, domain.ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:     uuid.NewString(),
		desc:   desc,
		cancel: cancel,
		done:   make(chan struct{}),
		events: eventlog.New[Event](maxJobEvents),
		eta:    newETAEstimator(r.etaWindow),
		state: domain.JobState{
			Kind:        desc.Kind,
			Status:      domain.JobStatusQueued,
			SubmittedAt: desc.SubmittedAt,
		},
	}
	j.state.ID = j.id

	j.started = r.now()
	if err := j.transition(domain.JobStatusRunning); err != nil {
		cancel()
		return nil, err
	}
	r.active = j

	r.logger.Info("job started", "job_id", j.id, "kind", desc.Kind)
	go r.execute(ctx, j)

	return &Handle{job: j}, nil
}

// Cancel asks the job to stop at its next work-unit boundary. It returns
// domain.ErrNotRunning when the job is already terminal.
func (r *Runner) Cancel(h *Handle) error {
	if h == nil || h.job == nil {
		return domain.ErrNotRunning
	}
	j := h.job

	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state.Status {
	case domain.JobStatusCancelling:
		return nil
	case domain.JobStatusQueued, domain.JobStatusRunning:
	default:
		return domain.ErrNotRunning
	}

	if err := j.transitionLocked(domain.JobStatusCancelling); err != nil {
		return err
	}
	j.cancelSeq = r.seq.Add(1)
	j.cancel()

	r.logger.Info("job cancel requested", "job_id", j.id)
	return nil
}

// Subscribe streams the job's events. A live job replays its history and
// then follows; a finished job yields only its terminal event. The channel
// closes after the terminal event or when ctx is done.
func (r *Runner) Subscribe(ctx context.Context, h *Handle) <-chan Event {
	j := h.job

	j.mu.Lock()
	terminal := j.state.Status.Terminal()
	last, _, ok := j.events.Last()
	j.mu.Unlock()

	if !terminal {
		return j.events.Follow(ctx, 1)
	}

	out := make(chan Event, 1)
	if ok {
		out <- last
	}
	close(out)
	return out
}

// Current returns the most recent job, active or terminal.
func (r *Runner) Current() (domain.JobState, bool) {
	r.mu.Lock()
	j := r.active
	r.mu.Unlock()

	if j == nil {
		return domain.JobState{}, false
	}
	return j.snapshot(), true
}

// CheckTextService verifies the text-operation backend is reachable.
func (r *Runner) CheckTextService(ctx context.Context) (domain.HealthStatus, error) {
	if r.textEngine == nil {
		return domain.HealthStatus{}, fmt.Errorf("%w: no text engine configured", domain.ErrServiceUnavailable)
	}

	status, err := r.textEngine.Health(ctx)
	if err != nil {
		return status, fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	if !status.OK {
		return status, fmt.Errorf("%w: %s", domain.ErrServiceUnavailable, status.Message)
	}
	return status, nil
}

// Close cancels the active job, waits for it to stop and rejects new work.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	j := r.active
	r.mu.Unlock()

	if j == nil {
		return
	}
	_ = r.Cancel(&Handle{job: j})
	<-j.done
}

func (r *Runner) execute(ctx context.Context, j *job) {
	defer close(j.done)
	defer j.cancel()

	var (
		result *domain.JobResult
		err    error
	)
	func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = &domain.EngineError{Category: "panic", Message: fmt.Sprint(recovered)}
			}
		}()

		switch j.desc.Kind {
		case domain.JobKindTranscription:
			result, err = r.runTranscription(ctx, j)
		case domain.JobKindTextOperation:
			result, err = r.runTextOperation(ctx, j)
		default:
			err = &domain.EngineError{Category: "input", Message: fmt.Sprintf("unsupported job kind %q", j.desc.Kind)}
		}
	}()

	if err != nil {
		r.markFailed(j)
	}
	r.finish(j, result, err)
}

// markFailed stamps the moment the executor observed a failure. Later calls
// keep the first stamp.
func (r *Runner) markFailed(j *job) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failSeq == 0 {
		j.failSeq = r.seq.Add(1)
	}
}

func (r *Runner) finish(j *job, result *domain.JobResult, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	status := resolveOutcome(j.cancelSeq, j.failSeq)
	event := Event{
		Timestamp: r.now().UTC(),
		JobID:     j.id,
		Kind:      j.desc.Kind,
		Type:      terminalEventType(status),
		Progress:  j.state.Progress,
		Elapsed:   j.elapsedLocked(r.now()),
	}

	switch status {
	case domain.JobStatusCompleted:
		event.Progress = 1
		event.Result = result
		j.state.Result = result
	case domain.JobStatusFailed:
		info := errorInfo(err)
		event.Error = &info
		j.state.Error = &info
	}

	j.state.Progress = event.Progress
	j.state.Elapsed = event.Elapsed
	j.state.ETA = nil
	if transitionErr := j.transitionLocked(status); transitionErr != nil {
		r.logger.Error("job finished from unexpected state", "job_id", j.id, "error", transitionErr)
		j.state.Status = status
	}

	j.publishLocked(event)
	j.events.Close()

	attrs := []any{"job_id", j.id, "status", status, "elapsed", event.Elapsed}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	if status == domain.JobStatusCancelled && err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("job error arrived after cancel", attrs...)
		return
	}
	r.logger.Info("job finished", attrs...)
}

func (r *Runner) runTextOperation(ctx context.Context, j *job) (*domain.JobResult, error) {
	params := j.desc.TextOperation
	var output strings.Builder

	emit := func(unit domain.TextUnit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		output.WriteString(unit.Chunk)

		total := float64(unit.Total)
		completed := float64(unit.Completed)
		if total > 0 && completed > total {
			completed = total
		}
		r.progress(j, completed, total, nil, unit.Chunk)
		return nil
	}

	req := domain.TextRequest{Prompt: params.Prompt, Input: params.Input}
	if err := r.textEngine.Run(ctx, req, emit); err != nil {
		r.markFailed(j)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &domain.JobResult{
		Kind: domain.JobKindTextOperation,
		Text: strings.TrimSpace(output.String()),
	}, nil
}

// progress publishes one Progress event carrying the output produced since
// the previous one. It reports false when the job is no longer running and
// nothing was published. Fraction and elapsed never move backwards.
func (r *Runner) progress(j *job, completed, total float64, segments []domain.Segment, chunk string) bool {
	now := r.now()

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state.Status != domain.JobStatusRunning {
		return false
	}

	fraction := 0.0
	if total > 0 {
		fraction = completed / total
	}
	fraction = min(max(fraction, j.state.Progress), 1)

	elapsed := j.elapsedLocked(now)
	if elapsed < j.state.Elapsed {
		elapsed = j.state.Elapsed
	}
	eta := j.eta.Add(elapsed, completed, total)

	j.state.Progress = fraction
	j.state.Elapsed = elapsed
	j.state.ETA = eta

	event := Event{
		Timestamp: now.UTC(),
		JobID:     j.id,
		Kind:      j.desc.Kind,
		Type:      EventTypeProgress,
		Progress:  fraction,
		Elapsed:   elapsed,
		ETA:       eta,
		Chunk:     chunk,
	}
	if len(segments) > 0 {
		event.Segments = append([]domain.Segment(nil), segments...)
	}
	j.publishLocked(event)
	return true
}

func errorInfo(err error) domain.ErrorInfo {
	var engineErr *domain.EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Info()
	}
	switch {
	case errors.Is(err, domain.ErrIO):
		return domain.ErrorInfo{Category: "io", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrorInfo{Category: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrServiceUnavailable):
		return domain.ErrorInfo{Category: "service_unavailable", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrorInfo{Category: "timeout", Message: err.Error()}
	default:
		return domain.ErrorInfo{Category: "engine", Message: err.Error()}
	}
}

// job is the runner-owned record behind a Handle.
type job struct {
	id      string
	desc    domain.JobDescriptor
	cancel  context.CancelFunc
	done    chan struct{}
	events  *eventlog.Log[Event]
	eta     *etaEstimator
	started time.Time

	mu        sync.Mutex
	state     domain.JobState
	cancelSeq uint64
	failSeq   uint64
	nextSeq   int64
}

func (j *job) status() domain.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state.Status
}

func (j *job) snapshot() domain.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()

	state := j.state
	if state.ETA != nil {
		eta := *state.ETA
		state.ETA = &eta
	}
	return state
}

func (j *job) transition(status domain.JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *job) transitionLocked(status domain.JobStatus) error {
	if !isValidTransition(j.state.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", j.state.Status, status)
	}
	j.state.Status = status
	return nil
}

func (j *job) elapsedLocked(now time.Time) time.Duration {
	elapsed := now.Sub(j.started)
	if elapsed < j.state.Elapsed {
		return j.state.Elapsed
	}
	return elapsed
}

func (j *job) publishLocked(event Event) {
	j.nextSeq++
	event.Seq = j.nextSeq
	j.events.Publish(event)
}
