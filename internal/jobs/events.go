package jobs

import (
	"time"

	"voicetransor/internal/domain"
)

// EventType classifies messages emitted during job execution.
type EventType string

const (
	EventTypeProgress  EventType = "progress"
	EventTypeCompleted EventType = "completed"
	EventTypeCancelled EventType = "cancelled"
	EventTypeFailed    EventType = "failed"
)

// Event is one step of a job's observable lifecycle. Progress events carry
// the partial output produced since the previous event in Segments or Chunk.
type Event struct {
	Seq       int64             `json:"seq"`
	Timestamp time.Time         `json:"timestamp"`
	JobID     string            `json:"jobId"`
	Kind      domain.JobKind    `json:"kind"`
	Type      EventType         `json:"type"`
	Progress  float64           `json:"progress"`
	Elapsed   time.Duration     `json:"elapsed"`
	ETA       *time.Duration    `json:"eta,omitempty"`
	Segments  []domain.Segment  `json:"segments,omitempty"`
	Chunk     string            `json:"chunk,omitempty"`
	Result    *domain.JobResult `json:"result,omitempty"`
	Error     *domain.ErrorInfo `json:"error,omitempty"`
}

// Terminal reports whether the event ends the job's stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventTypeCompleted, EventTypeCancelled, EventTypeFailed:
		return true
	default:
		return false
	}
}
