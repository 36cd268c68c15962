package domain

import "time"

// JobKind selects which engine a job runs against.
type JobKind string

const (
	JobKindTranscription JobKind = "transcription"
	JobKindTextOperation JobKind = "text_operation"
)

// JobStatus tracks the lifecycle of a single orchestrated job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusRunning    JobStatus = "running"
	JobStatusCancelling JobStatus = "cancelling"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusFailed     JobStatus = "failed"
)

// Active reports whether the status occupies the single job slot.
func (s JobStatus) Active() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCancelling:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCancelled, JobStatusFailed:
		return true
	default:
		return false
	}
}

// TranscriptionParams configures a transcription job.
type TranscriptionParams struct {
	AudioPath         string  `json:"audioPath" validate:"required"`
	Model             string  `json:"model" validate:"required"`
	Device            string  `json:"device" validate:"omitempty,oneof=auto cpu cuda mps"`
	Language          string  `json:"language"`
	IncludeTimestamps bool    `json:"includeTimestamps"`
	ChunkSeconds      float64 `json:"chunkSeconds" validate:"gte=0"`
}

// TextOperationParams configures an LLM text operation over a transcript.
type TextOperationParams struct {
	Prompt string `json:"prompt" validate:"required"`
	Input  string `json:"input" validate:"required"`
}

// JobDescriptor is the immutable request handed to the runner.
// Exactly one of Transcription or TextOperation is set, matching Kind.
type JobDescriptor struct {
	Kind          JobKind              `json:"kind" validate:"required,oneof=transcription text_operation"`
	Transcription *TranscriptionParams `json:"transcription,omitempty" validate:"required_if=Kind transcription"`
	TextOperation *TextOperationParams `json:"textOperation,omitempty" validate:"required_if=Kind text_operation"`
	SubmittedAt   time.Time            `json:"submittedAt"`
}

// Segment is one timed piece of transcript text, in seconds from audio start.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// JobResult is the payload of a completed job.
type JobResult struct {
	Kind     JobKind   `json:"kind"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// ErrorInfo is the structured failure attached to a failed job.
type ErrorInfo struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// JobState is a snapshot of the runner-owned state for one job.
type JobState struct {
	ID          string         `json:"id"`
	Kind        JobKind        `json:"kind"`
	Status      JobStatus      `json:"status"`
	Progress    float64        `json:"progress"`
	Elapsed     time.Duration  `json:"elapsed"`
	ETA         *time.Duration `json:"eta,omitempty"`
	Result      *JobResult     `json:"result,omitempty"`
	Error       *ErrorInfo     `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// Preset is a named, reusable prompt for text operations.
type Preset struct {
	Name       string    `json:"name"`
	PromptText string    `json:"promptText"`
	CreatedAt  time.Time `json:"createdAt"`
	Builtin    bool      `json:"builtin,omitempty"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelsDir               string  `json:"modelsDir" mapstructure:"models_dir" validate:"required"`
	OutputDir               string  `json:"outputDir" mapstructure:"output_dir"`
	Model                   string  `json:"model" mapstructure:"model" validate:"required"`
	Language                string  `json:"language" mapstructure:"language"`
	Device                  string  `json:"device" mapstructure:"device" validate:"oneof=auto cpu cuda mps"`
	IncludeTimestamps       bool    `json:"includeTimestamps" mapstructure:"include_timestamps"`
	ChunkSeconds            float64 `json:"chunkSeconds" mapstructure:"chunk_seconds" validate:"gt=0"`
	CheckpointDir           string  `json:"checkpointDir" mapstructure:"checkpoint_dir" validate:"required"`
	CheckpointFlushSeconds  float64 `json:"checkpointFlushSeconds" mapstructure:"checkpoint_flush_seconds" validate:"gte=0"`
	CheckpointRetentionDays int     `json:"checkpointRetentionDays" mapstructure:"checkpoint_retention_days" validate:"gte=0"`
	CheckpointPruneSchedule string  `json:"checkpointPruneSchedule" mapstructure:"checkpoint_prune_schedule"`
	PresetDB                string  `json:"presetDb" mapstructure:"preset_db" validate:"required"`
	TextBackend             string  `json:"textBackend" mapstructure:"text_backend" validate:"oneof=ollama openai"`
	OllamaURL               string  `json:"ollamaUrl" mapstructure:"ollama_url" validate:"omitempty,url"`
	OllamaModel             string  `json:"ollamaModel" mapstructure:"ollama_model"`
	OllamaNumPredict        int     `json:"ollamaNumPredict" mapstructure:"ollama_num_predict" validate:"gte=0"`
	OpenAIURL               string  `json:"openaiUrl" mapstructure:"openai_url" validate:"omitempty,url"`
	OpenAIModel             string  `json:"openaiModel" mapstructure:"openai_model"`
	OpenAIAPIKey            string  `json:"openaiApiKey" mapstructure:"openai_api_key"`
	PDFFontPath             string  `json:"pdfFontPath" mapstructure:"pdf_font_path"`
	DownloadTimeoutMinutes  int     `json:"downloadTimeoutMinutes" mapstructure:"download_timeout_minutes" validate:"gt=0"`
	ETAWindow               int     `json:"etaWindow" mapstructure:"eta_window" validate:"gte=1"`
}
