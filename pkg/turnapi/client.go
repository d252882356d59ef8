package turnapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxhire/voxhire/pkg/errorsx"
	"github.com/voxhire/voxhire/pkg/resilience"
)

// HTTPClient talks to a remote turn backend over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

type HTTPOption func(*HTTPClient)

func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

func WithAPIKey(key string) HTTPOption {
	return func(c *HTTPClient) { c.apiKey = key }
}

func NewHTTPClient(baseURL string, logger *slog.Logger, opts ...HTTPOption) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Name() string { return "http" }

// GenerateTurn posts the request to /v1/turn. HTTP 429 becomes a
// RateLimitError; other non-2xx statuses become reasoned transport errors.
func (c *HTTPClient) GenerateTurn(ctx context.Context, req Request) (*Envelope, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonBadPayload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/turn", bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTurnRequest)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	started := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTurnRequest)
	}
	defer resp.Body.Close()

	c.logger.Debug("turn request completed",
		"status", resp.StatusCode,
		"elapsed", time.Since(started))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &resilience.RateLimitError{
			Provider: c.Name(),
			Message:  "turn backend rate limited",
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorsx.Wrap(
			fmt.Errorf("turn backend returned status %d", resp.StatusCode),
			errorsx.ReasonTurnRequest)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonTurnRequest)
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonBadPayload)
	}
	if !envelope.OK && envelope.Error != nil && envelope.Error.Code == CodeRateLimited {
		return nil, &resilience.RateLimitError{
			Provider: c.Name(),
			Message:  envelope.Error.Message,
		}
	}
	return &envelope, nil
}
