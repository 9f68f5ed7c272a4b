// Package market provides a client for the internal market-data service.
package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gamemaster/internal/models"
)

const (
	// DefaultStocksPath is the snapshot endpoint relative to the base URL.
	DefaultStocksPath = "/stocks"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// maxBodySize bounds how much of a response body is read.
	maxBodySize = 32 << 20
)

// Client fetches market snapshots. It performs exactly one request per call,
// with no retries and no caching.
type Client struct {
	baseURL    string
	path       string
	timeout    time.Duration
	httpClient *http.Client
	logger     arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds each snapshot request, body read included. It is
// applied through the request context, so a client passed to WithHTTPClient
// is never modified.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithPath overrides the snapshot path.
func WithPath(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.path = "/" + strings.TrimLeft(path, "/")
		}
	}
}

// NewClient creates a market-data client for baseURL. The base URL is not
// validated; an unusable address surfaces as a failed fetch.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultStocksPath,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the snapshot URL.
func (c *Client) Endpoint() string {
	return c.baseURL + c.path
}

// APIError represents a non-2xx response from the market-data service.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// FetchSnapshot performs a single GET and decodes the body. On any failure it
// returns the empty snapshot together with the cause.
func (c *Client) FetchSnapshot(ctx context.Context) (models.MarketSnapshot, error) {
	endpoint := c.Endpoint()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.EmptySnapshot(), fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", endpoint).
			Msg("Market API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.EmptySnapshot(), fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return models.EmptySnapshot(), fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.EmptySnapshot(), &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   endpoint,
		}
	}

	snapshot, err := models.ParseSnapshot(body)
	if err != nil {
		return models.EmptySnapshot(), err
	}

	return snapshot, nil
}

// Fetch returns the current market snapshot, or the empty snapshot when the
// request fails for any reason. Failures are logged as warnings, never returned.
func (c *Client) Fetch(ctx context.Context) models.MarketSnapshot {
	snapshot, err := c.FetchSnapshot(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn().
				Str("url", c.Endpoint()).
				Err(err).
				Msg("Error fetching market data")
		}
		return models.EmptySnapshot()
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.Endpoint()).
			Bool("empty", snapshot.IsEmpty()).
			Msg("Market data fetched")
	}

	return snapshot
}
