// Package client talks to a vizchat query backend over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

const (
	// QueryPath is the backend route prompts are posted to.
	QueryPath = "/api/v1/query"

	msgNetwork = "Network response was not ok"
	maxBody    = 10 << 20
)

// QueryError is the single user-visible message a failed query collapses to.
type QueryError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *QueryError) Error() string { return e.Message }

func (e *QueryError) Unwrap() error { return e.Err }

// Client posts prompts to a query backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New constructs a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query sends one prompt. Every failure, transport, status or envelope, is
// returned as a *QueryError whose message is safe to show to the user.
func (c *Client) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &QueryError{Message: fmt.Sprintf("encode request: %v", err), Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+QueryPath, bytes.NewReader(body))
	if err != nil {
		return nil, &QueryError{Message: err.Error(), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &QueryError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &QueryError{Message: msgNetwork, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &QueryError{Message: msgNetwork, StatusCode: resp.StatusCode}
	}

	var envelope models.QueryResponse
	decodeErr := json.Unmarshal(raw, &envelope)
	if decodeErr != nil {
		return nil, &QueryError{Message: fmt.Sprintf("decode response: %v", decodeErr), StatusCode: resp.StatusCode, Err: decodeErr}
	}
	if !envelope.Success {
		return &envelope, &QueryError{Message: envelope.FailureMessage(), StatusCode: resp.StatusCode}
	}
	return &envelope, nil
}
