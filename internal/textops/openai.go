package textops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"voicetransor/internal/domain"
)

const (
	// DefaultOpenAIURL is the public OpenAI API base.
	DefaultOpenAIURL = "https://api.openai.com/v1"
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIEngine calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIEngine struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// NewOpenAIEngine creates an engine with defaults for empty fields.
func NewOpenAIEngine(baseURL, model, apiKey string) *OpenAIEngine {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOpenAIURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIEngine{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{},
	}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// Run sends one chat completion and emits the whole answer as a single unit.
func (e *OpenAIEngine) Run(ctx context.Context, req domain.TextRequest, emit func(domain.TextUnit) error) error {
	body, err := json.Marshal(openAIRequest{
		Model: e.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPayload(req)},
		},
		Temperature: temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	e.authorize(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client().Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return engineError("openai", "http request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return engineError("openai", fmt.Sprintf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var apiResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return engineError("openai", "failed to decode response", err)
	}
	if len(apiResp.Choices) == 0 {
		return engineError("openai", "no choices returned from API", nil)
	}

	content := strings.TrimSpace(apiResp.Choices[0].Message.Content)
	if content == "" {
		return engineError("openai", "API returned an empty response", nil)
	}
	return emit(domain.TextUnit{Chunk: content, Completed: 1, Total: 1})
}

// Health lists models to confirm the endpoint and key are usable.
func (e *OpenAIEngine) Health(ctx context.Context) (domain.HealthStatus, error) {
	status := domain.HealthStatus{Backend: "openai"}

	ctx, cancel := context.WithTimeout(ctx, 5*healthTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL+"/models", nil)
	if err != nil {
		return status, fmt.Errorf("failed to create request: %w", err)
	}
	e.authorize(httpReq)

	resp, err := e.client().Do(httpReq)
	if err != nil {
		status.Message = err.Error()
		return status, fmt.Errorf("cannot reach %s: %w", e.BaseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		status.Message = fmt.Sprintf("endpoint responded with status %d", resp.StatusCode)
		return status, nil
	}

	status.OK = true
	status.Message = "using model " + e.Model
	return status, nil
}

func (e *OpenAIEngine) authorize(req *http.Request) {
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}
}

func (e *OpenAIEngine) client() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return http.DefaultClient
}
