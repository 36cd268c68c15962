package textops

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicetransor/internal/domain"
)

const (
	// DefaultOllamaURL is the local Ollama API address.
	DefaultOllamaURL = "http://localhost:11434"
	// DefaultOllamaModel is used when no model is configured.
	DefaultOllamaModel = "llama3.1:8b"
	// DefaultNumPredict caps generated tokens and sizes progress.
	DefaultNumPredict = 1024

	healthTimeout = time.Second
)

// OllamaEngine streams completions from Ollama's /api/generate.
type OllamaEngine struct {
	BaseURL    string
	Model      string
	NumPredict int
	HTTPClient *http.Client
}

// NewOllamaEngine creates an engine with defaults for empty fields.
func NewOllamaEngine(baseURL, model string, numPredict int) *OllamaEngine {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOllamaURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultOllamaModel
	}
	if numPredict <= 0 {
		numPredict = DefaultNumPredict
	}
	return &OllamaEngine{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      model,
		NumPredict: numPredict,
		HTTPClient: &http.Client{},
	}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateChunk struct {
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
	Error     string `json:"error"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Run streams the completion, emitting one unit per response chunk.
func (e *OllamaEngine) Run(ctx context.Context, req domain.TextRequest, emit func(domain.TextUnit) error) error {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  e.Model,
		Prompt: buildUserPayload(req),
		System: systemPrompt,
		Stream: true,
		Options: ollamaOptions{
			Temperature: temperature,
			NumPredict:  e.NumPredict,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client().Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return engineError("ollama", "cannot connect to Ollama, ensure it is installed and running", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return engineError("ollama", fmt.Sprintf("Ollama API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tokens := 0
	produced := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaGenerateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return engineError("ollama", "malformed Ollama stream", err)
		}
		if chunk.Error != "" {
			return engineError("ollama", chunk.Error, nil)
		}

		if chunk.Response != "" {
			tokens++
			if strings.TrimSpace(chunk.Response) != "" {
				produced = true
			}
			unit := domain.TextUnit{Chunk: chunk.Response, Completed: tokens, Total: e.NumPredict}
			if err := emit(unit); err != nil {
				return err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return engineError("ollama", "lost connection to Ollama during processing", err)
	}
	if !produced {
		return engineError("ollama", "Ollama returned an empty response", nil)
	}
	return nil
}

// Health checks that Ollama answers /api/tags within one second.
func (e *OllamaEngine) Health(ctx context.Context) (domain.HealthStatus, error) {
	status := domain.HealthStatus{Backend: "ollama"}

	models, err := e.ListModels(ctx)
	if err != nil {
		status.Message = err.Error()
		return status, err
	}

	status.OK = true
	shown := models
	if len(shown) > 5 {
		shown = shown[:5]
	}
	status.Message = "Ollama is running. Available models: " + strings.Join(shown, ", ")
	return status, nil
}

// ListModels returns the names of installed Ollama models.
func (e *OllamaEngine) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}

	resp, err := e.client().Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("connection to Ollama timed out: %w", err)
		}
		return nil, fmt.Errorf("cannot connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama responded with status %d", resp.StatusCode)
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode ollama tags: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, model := range tags.Models {
		if model.Name != "" {
			names = append(names, model.Name)
		}
	}
	return names, nil
}

func (e *OllamaEngine) client() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return http.DefaultClient
}
