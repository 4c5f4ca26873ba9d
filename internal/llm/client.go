// Package llm talks to the chat-completion API and turns its unreliable text
// output into validated invoice extractions.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finlens-ai/invoice-engine/internal/domain"
	"github.com/finlens-ai/invoice-engine/internal/observability"
)

// Client handles communication with the chat-completion API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	retry      RetryConfig
	httpClient *http.Client
	logger     *observability.Logger
}

// ClientConfig holds completion client settings.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	RetryBase  time.Duration
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents the API request structure.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Response represents the API response structure.
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// NewClient creates a new completion client.
func NewClient(cfg ClientConfig, logger *observability.Logger) *Client {
	if logger == nil {
		logger = observability.Nop()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		retry: RetryConfig{
			MaxRetries: cfg.MaxRetries,
			Base:       cfg.RetryBase,
			Max:        maxBackoff,
		},
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Complete sends one system+user prompt pair and returns the raw completion
// text, trimmed. Rate limiting and network failures are retried with backoff;
// any other non-2xx response is fatal for the call.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(&Request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", domain.APIError("marshal completion request", err)
	}

	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.APIError("read completion response", err)
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", domain.APIError("parse completion response", err)
	}

	if len(parsed.Choices) == 0 {
		return "", domain.APIError("completion response has no choices", nil)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func snippet(b []byte) string {
	s := string(b)
	if len(s) > 500 {
		s = s[:500]
	}
	return s
}
