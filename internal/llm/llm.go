// Package llm abstracts the large-language-model capabilities the pipeline
// agents depend on: analyzing a news item, generating free text, and
// generating structured JSON. Two implementations are provided — an Ollama
// HTTP client in the teacher's ai.go style for local models, and an
// OpenAI-compatible client via sashabaranov/go-openai — selected by
// configuration so the rest of the codebase only ever depends on the
// Client interface.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/geraldfingburke/editorial-core/internal/config"
)

// AnalysisResult is the structured outcome of AnalyzeNews: category,
// urgency, and importance inference for one article, used by the Router
// agent as an AI fallback when rule-based classification is inconclusive.
type AnalysisResult struct {
	Category        string   `json:"category"`
	Urgency         string   `json:"urgency"`
	ImportanceScore int      `json:"importance_score"`
	IsBreaking      bool     `json:"is_breaking"`
	Entities        []string `json:"entities"`
	Keywords        []string `json:"keywords"`
	Reasoning       string   `json:"reasoning"`
}

// Client is the capability surface every agent depends on.
type Client interface {
	AnalyzeNews(ctx context.Context, title, content string) (*AnalysisResult, error)
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, dest interface{}) error
}

const (
	defaultTimeout = 2 * time.Minute
	maxAttempts    = 3
	baseBackoff    = 2 * time.Second
	maxBackoff     = 30 * time.Second
)

// withRetry retries fn up to maxAttempts times with exponential backoff
// between 2s and 30s, matching the original service's LLM-call retry policy.
func withRetry(ctx context.Context, log zerolog.Logger, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("llm call failed")
			if attempt == maxAttempts {
				break
			}
			backoff := time.Duration(math.Min(
				float64(baseBackoff)*math.Pow(2, float64(attempt-1)),
				float64(maxBackoff),
			))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("llm: %s failed after %d attempts: %w", op, maxAttempts, lastErr)
}

func analysisPrompt(title, content string) (system, user string) {
	system = "You are a news classification engine for an Arabic-language newsroom. " +
		"Respond with strict JSON only, matching the requested schema."
	user = fmt.Sprintf(
		"Classify this article.\n\nTitle: %s\n\nContent: %s\n\n"+
			"Return JSON: {\"category\":string,\"urgency\":string,\"importance_score\":int(0-10),"+
			"\"is_breaking\":bool,\"entities\":[string],\"keywords\":[string],\"reasoning\":string}",
		title, content)
	return
}

// ============================================================================
// Ollama implementation
// ============================================================================

// OllamaRequest mirrors Ollama's /api/generate request body.
type OllamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Format string `json:"format,omitempty"`
	Stream bool   `json:"stream"`
}

// OllamaResponse mirrors Ollama's /api/generate response when streaming is
// disabled.
type OllamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// OllamaClient talks to a local Ollama instance, in the teacher's ai.go
// callOllama style.
type OllamaClient struct {
	baseURL string
	model   string
	log     zerolog.Logger
}

// NewOllamaClient constructs an OllamaClient from cfg.
func NewOllamaClient(cfg *config.Config, log zerolog.Logger) *OllamaClient {
	return &OllamaClient{baseURL: cfg.OllamaURL, model: "llama3.2:3b", log: log}
}

func (c *OllamaClient) generate(ctx context.Context, req OllamaRequest) (string, error) {
	var out string
	err := withRetry(ctx, c.log, "ollama.generate", func() error {
		jsonData, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpClient := &http.Client{Timeout: defaultTimeout}
		resp, err := httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("calling ollama: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
		}

		var ollamaResp OllamaResponse
		if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
			return fmt.Errorf("decoding ollama response: %w", err)
		}
		out = ollamaResp.Response
		return nil
	})
	return out, err
}

func (c *OllamaClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, OllamaRequest{Model: c.model, Prompt: userPrompt, System: systemPrompt, Stream: false})
}

func (c *OllamaClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, dest interface{}) error {
	raw, err := c.generate(ctx, OllamaRequest{Model: c.model, Prompt: userPrompt, System: systemPrompt, Format: "json", Stream: false})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("llm: decode ollama json: %w", err)
	}
	return nil
}

func (c *OllamaClient) AnalyzeNews(ctx context.Context, title, content string) (*AnalysisResult, error) {
	system, user := analysisPrompt(title, content)
	var result AnalysisResult
	if err := c.GenerateJSON(ctx, system, user, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ============================================================================
// OpenAI-compatible implementation
// ============================================================================

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint via
// sashabaranov/go-openai.
type OpenAIClient struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIClient constructs an OpenAIClient from cfg.
func NewOpenAIClient(cfg *config.Config, log zerolog.Logger) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(cfg.OpenAIAPIKey),
		model:  cfg.OpenAIModel,
		log:    log,
	}
}

func (c *OpenAIClient) complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	var out string
	err := withRetry(ctx, c.log, "openai.chat", func() error {
		req := openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		}
		if jsonMode {
			req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("openai chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("openai returned no choices")
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	return out, err
}

func (c *OpenAIClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, false)
}

func (c *OpenAIClient) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, dest interface{}) error {
	raw, err := c.complete(ctx, systemPrompt, userPrompt, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("llm: decode openai json: %w", err)
	}
	return nil
}

func (c *OpenAIClient) AnalyzeNews(ctx context.Context, title, content string) (*AnalysisResult, error) {
	system, user := analysisPrompt(title, content)
	var result AnalysisResult
	if err := c.GenerateJSON(ctx, system, user, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// New selects an implementation based on configuration: an OpenAI API key
// present prefers OpenAIClient, otherwise falls back to the local Ollama
// instance.
func New(cfg *config.Config, log zerolog.Logger) Client {
	if cfg.OpenAIAPIKey != "" {
		return NewOpenAIClient(cfg, log)
	}
	return NewOllamaClient(cfg, log)
}
