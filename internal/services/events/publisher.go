// Package events publishes validated scenarios to the market simulator.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gamemaster/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultCreatePath is the simulator endpoint that creates news events.
	DefaultCreatePath = "/internal/events/create"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 2
)

// Publisher posts news events to the simulator.
type Publisher struct {
	baseURL    string
	path       string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) PublisherOption {
	return func(p *Publisher) {
		p.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithPath overrides the create-event path.
func WithPath(path string) PublisherOption {
	return func(p *Publisher) {
		if path != "" {
			p.path = "/" + strings.TrimLeft(path, "/")
		}
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) PublisherOption {
	return func(p *Publisher) {
		p.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewPublisher creates a publisher for the simulator at baseURL.
func NewPublisher(baseURL string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    DefaultCreatePath,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// APIError represents a non-2xx response from the simulator.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("simulator API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Publish sends the scenario as a news event and returns the simulator's reply.
func (p *Publisher) Publish(ctx context.Context, scenario *models.Scenario) (*models.NewsEventResult, error) {
	payload := scenario.ToEventPayload()

	var result models.NewsEventResult
	if err := p.post(ctx, p.path, payload, &result); err != nil {
		return nil, fmt.Errorf("failed to publish event '%s': %w", payload.Headline, err)
	}

	if p.logger != nil {
		p.logger.Info().
			Str("headline", payload.Headline).
			Str("sector", payload.SectorApplied).
			Str("event_id", string(result.EventID)).
			Int("stocks_affected", result.StocksAffected).
			Msg("Event published")
	}

	return &result, nil
}

// post performs a JSON POST request to the simulator.
func (p *Publisher) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if p.logger != nil {
		p.logger.Debug().
			Str("url", endpoint).
			Int("body_bytes", len(data)).
			Msg("Simulator API request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
			Endpoint:   endpoint,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
