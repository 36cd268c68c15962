// Package textops runs LLM-backed text operations (summarize, translate,
// extract) against Ollama or an OpenAI-compatible endpoint.
package textops

import (
	"strings"

	"voicetransor/internal/domain"
)

const (
	systemPrompt = "You are a concise, accurate assistant."
	temperature  = 0.2
)

// buildUserPayload wraps the user's instruction and the source transcript.
func buildUserPayload(req domain.TextRequest) string {
	var b strings.Builder
	b.WriteString("Follow the instruction below and apply it to the provided source text.\n\n")
	b.WriteString("Instruction (from user):\n")
	b.WriteString(strings.TrimSpace(req.Prompt))
	b.WriteString("\n\nSource text:\n")
	b.WriteString(strings.TrimSpace(req.Input))
	b.WriteString("\n\n")
	return b.String()
}

// engineError tags a backend failure for the job's Failed event.
func engineError(backend, message string, err error) error {
	return &domain.EngineError{Category: backend, Message: message, Err: err}
}
