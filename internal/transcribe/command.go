package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"voicetransor/internal/domain"
)

// Stage names reported in StageError.
const (
	StageProbe      = "probe"
	StageSlice      = "slice"
	StageTranscribe = "transcribe"
	StageParse      = "parse"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// StageError is a stage-aware engine failure with optional command context.
type StageError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats engine failures for logs and UI.
func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// asEngineError converts a stage failure into the job-level error type.
// Context cancellation passes through untouched.
func asEngineError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		message := stageErr.Message
		if stderr := lastLine(stageErr.CommandLog.Stderr); stderr != "" {
			message += ": " + stderr
		}
		return &domain.EngineError{Category: stageErr.Stage, Message: message, Err: err}
	}
	return &domain.EngineError{Category: "engine", Message: err.Error(), Err: err}
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, err
	}

	return result, nil
}

func (e *Engine) run(ctx context.Context, name string, args ...string) (CommandLog, error) {
	res, err := e.runner.Run(ctx, name, args...)
	log := CommandLog{
		Command:  name,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if e.onLog != nil {
		e.onLog(log)
	}
	return log, err
}
