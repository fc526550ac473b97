// Package llm provides a provider-agnostic chat completion client that walks
// an ordered chain of endpoints with per-endpoint retries.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-vizchat/internal/metrics"
)

// maxResponseSize caps provider response bodies.
const maxResponseSize = 10 * 1024 * 1024

// Role names used in Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Endpoint is one provider/model pair in the fallback chain.
type Endpoint struct {
	Provider string
	URL      string
	Model    string
	APIKey   string
}

// Message is a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request defines a completion request.
type Request struct {
	Messages []Message
	// Temperature is nil for the endpoint default.
	Temperature *float64
	// MaxTokens of 0 uses the endpoint default.
	MaxTokens int
}

// TokenUsage reports token consumption for a call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completion result.
type Response struct {
	RequestID    string
	Content      string
	Model        string
	Provider     string
	Usage        TokenUsage
	FinishReason string
}

// Client walks the endpoint chain until one endpoint answers.
type Client struct {
	endpoints   []Endpoint
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used by HTTP providers.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets per-endpoint retry behaviour.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// NewClient creates a Client over the ordered endpoints.
func NewClient(endpoints []Endpoint, opts ...ClientOption) *Client {
	c := &Client{
		endpoints:   append([]Endpoint(nil), endpoints...),
		retryConfig: DefaultRetryConfig(),
		httpClient:  &http.Client{Timeout: 180 * time.Second},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retryConfig.MaxAttempts <= 0 {
		c.retryConfig.MaxAttempts = 1
	}
	if c.retryConfig.BackoffMultiplier <= 0 {
		c.retryConfig.BackoffMultiplier = 2
	}
	return c
}

// Endpoints returns a copy of the configured chain.
func (c *Client) Endpoints() []Endpoint {
	return append([]Endpoint(nil), c.endpoints...)
}

// Complete sends req to each endpoint in order. Fatal errors stop the chain;
// transient errors move on to the next endpoint once retries are exhausted.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}
	if len(c.endpoints) == 0 {
		return nil, NewFatalError(errors.New("no LLM endpoints configured"))
	}

	requestID := uuid.NewString()
	var lastErr error
	for _, ep := range c.endpoints {
		resp, attempts, err := c.tryEndpoint(ctx, ep, req)
		if err == nil {
			resp.RequestID = requestID
			if resp.Provider == "" {
				resp.Provider = ep.Provider
			}
			if resp.Model == "" {
				resp.Model = ep.Model
			}
			c.logger.Debug("llm completion",
				slog.String("request_id", requestID),
				slog.String("provider", ep.Provider),
				slog.String("model", resp.Model),
				slog.Int("attempts", attempts),
				slog.Int("total_tokens", resp.Usage.TotalTokens))
			return resp, nil
		}

		lastErr = err
		if IsFatal(err) {
			c.logger.Warn("llm endpoint failed fatally",
				slog.String("request_id", requestID),
				slog.String("provider", ep.Provider),
				slog.Any("error", err))
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("llm endpoint failed, trying next",
			slog.String("request_id", requestID),
			slog.String("provider", ep.Provider),
			slog.Int("attempts", attempts),
			slog.Any("error", err))
	}
	return nil, fmt.Errorf("all LLM endpoints failed: %w", lastErr)
}

func (c *Client) tryEndpoint(ctx context.Context, ep Endpoint, req Request) (*Response, int, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		start := time.Now()
		resp, err := c.doRequest(ctx, ep, req)
		metrics.ObserveLLMCall(ep.Provider, time.Since(start), err)
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err
		if IsFatal(err) {
			return nil, attempt, err
		}
		if attempt < c.retryConfig.MaxAttempts {
			wait := c.retryConfig.backoff(attempt)
			c.logger.Debug("llm request failed, retrying",
				slog.String("provider", ep.Provider),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", wait),
				slog.Any("error", err))
			select {
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return nil, c.retryConfig.MaxAttempts, lastErr
}

func (c *Client) doRequest(ctx context.Context, ep Endpoint, req Request) (*Response, error) {
	if sdk := GetSDKProvider(ep.Provider); sdk != nil {
		return sdk.Complete(ctx, ep, req)
	}
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.BuildURL(ep.URL), bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq, ep.APIKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, ClassifyStatus(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, ep.Model)
	if err != nil {
		return nil, NewTransientError(err)
	}
	resp.Provider = provider.Name()
	return resp, nil
}

// ClassifyStatus maps an HTTP status to a transient or fatal error.
func ClassifyStatus(statusCode int, body []byte) error {
	text := string(body)
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, text)
	switch {
	case statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return NewTransientError(err)
	default:
		return NewFatalError(err)
	}
}
