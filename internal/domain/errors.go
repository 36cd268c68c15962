package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a job is submitted while another is active.
	ErrBusy = errors.New("busy: a job is already active")

	// ErrNotRunning is returned when cancelling a job that already finished.
	ErrNotRunning = errors.New("job is not running")

	// ErrAlreadyExists is returned when a preset name is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound is returned when a preset or model is unknown.
	ErrNotFound = errors.New("not found")

	// ErrServiceUnavailable is returned when the text-operation backend is unreachable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrIO marks persistence and export failures.
	ErrIO = errors.New("i/o failure")

	// ErrInvalidInput marks descriptors or settings that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// EngineError wraps a transcription or LLM engine failure with a category.
type EngineError struct {
	Category string
	Message  string
	Err      error
}

// Error formats the failure as "category: message".
func (e *EngineError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap exposes the underlying engine error.
func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Info converts the error into the payload carried by a Failed event.
func (e *EngineError) Info() ErrorInfo {
	return ErrorInfo{Category: e.Category, Message: e.Message}
}
