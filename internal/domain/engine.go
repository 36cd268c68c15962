package domain

// TranscriptionRequest is what the runner hands a transcription engine.
// ResumeFrom is the audio offset in seconds where work must start.
type TranscriptionRequest struct {
	AudioPath         string
	ModelPath         string
	Model             string
	Device            string
	Language          string
	IncludeTimestamps bool
	ChunkSeconds      float64
	ResumeFrom        float64
}

// TranscriptionUnit is one finished piece of audio. OffsetSeconds is the
// absolute position processed so far.
type TranscriptionUnit struct {
	Segments        []Segment
	OffsetSeconds   float64
	DurationSeconds float64
}

// TextRequest is what the runner hands a text-operation engine.
type TextRequest struct {
	Prompt string
	Input  string
}

// TextUnit is one streamed chunk of generated text. Total is zero when the
// engine cannot estimate output length.
type TextUnit struct {
	Chunk     string
	Completed int
	Total     int
}

// HealthStatus is the text service preflight answer.
type HealthStatus struct {
	OK      bool   `json:"ok"`
	Backend string `json:"backend"`
	Message string `json:"message,omitempty"`
}
