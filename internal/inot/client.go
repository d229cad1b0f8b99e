package inot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ChatMessage is a single role/content pair in a chat-completion request,
// grounded on the teacher's llm.ChatMessage wire shape.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ClientConfig configures the orchestrator's LLM client. Temperature and
// top_p are not configurable: spec.md §4.5 pins them (temperature=0.0) so
// two otherwise-identical calls return byte-identical completions modulo
// provider nondeterminism.
type ClientConfig struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// LLMClient issues the orchestrator's single structured completion per
// iteration, grounded on the teacher's llm.Client (bifrost-gateway HTTP
// chat-completions shape) but stripped of the teacher's multi-agent
// dispatch: this package issues exactly one call per decision.
type LLMClient struct {
	endpoint   string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewLLMClient builds a client with the teacher's defaulting pattern.
func NewLLMClient(cfg ClientConfig) *LLMClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:8080/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}

	return &LLMClient{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Complete sends the orchestrator's deterministic single completion and
// returns the raw content plus completion token count for budget tracking.
func (c *LLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.0,
		TopP:        1.0,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Debug().Str("model", c.model).Msg("sending orchestrator completion request")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.Unmarshal(raw, &errResp)
		return "", 0, classifyHTTPError(resp.StatusCode, errResp.Error.Message)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", 0, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, fmt.Errorf("no choices in orchestrator completion response")
	}

	log.Debug().
		Str("model", c.model).
		Int("completion_tokens", parsed.Usage.CompletionTokens).
		Dur("duration", time.Since(start)).
		Msg("orchestrator completion received")

	return parsed.Choices[0].Message.Content, parsed.Usage.CompletionTokens, nil
}

// llmError classifies a non-200 response. The orchestrator does not retry
// transport failures itself (see orchestrator.go's Decide); a caller wanting
// retry-on-transient should wrap the client in resilience.WithRetry.
type llmError struct {
	StatusCode int
	Message    string
	retryable  bool
}

func (e *llmError) Error() string {
	return fmt.Sprintf("llm: status %d: %s", e.StatusCode, e.Message)
}

func (e *llmError) Retryable() bool { return e.retryable }

func classifyHTTPError(status int, message string) error {
	retryable := status == http.StatusTooManyRequests || (status >= 500 && status < 600)
	return &llmError{StatusCode: status, Message: message, retryable: retryable}
}

// extractJSON pulls a JSON array or object out of content that may be
// wrapped in markdown fences or preceded/followed by stray prose, per the
// §4.5 auto-remediation requirement.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)

	if idx := strings.Index(trimmed, "```json"); idx >= 0 {
		rest := trimmed[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexAny(trimmed, "[{")
	if start < 0 {
		return trimmed
	}
	open, close := byte('['), byte(']')
	if trimmed[start] == '{' {
		open, close = '{', '}'
	}
	depth := 0
	for i := start; i < len(trimmed); i++ {
		switch trimmed[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return trimmed[start : i+1]
			}
		}
	}
	return trimmed[start:]
}
