// Package base provides the shared HTTP transport for MediaWiki API calls.
package base

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/olgasafonova/wikiarticles/internal/infra"
	"github.com/olgasafonova/wikiarticles/metrics"
)

const (
	// DefaultTimeout for API requests
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of attempts per request
	DefaultMaxRetries = 3

	// MaxConcurrentRequests limits parallel API calls
	MaxConcurrentRequests = 5

	// MaxResponseSize caps a response body; full articles rarely exceed a few MB
	MaxResponseSize = 10 << 20

	// DefaultUserAgent identifies the client to Wikimedia, which rejects anonymous agents
	DefaultUserAgent = "MyApp/1.0 (your@email.com)"
)

// Client provides HTTP infrastructure with rate limiting, retries and circuit breaking.
type Client struct {
	HTTPClient     *http.Client
	Logger         *slog.Logger
	CircuitBreaker *infra.CircuitBreaker
	Semaphore      chan struct{}
	UserAgent      string
	MaxRetries     int
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.HTTPClient = c
	}
}

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		client.Logger = l
	}
}

// WithTimeout sets the per-request timeout on the HTTP client
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 && client.HTTPClient != nil {
			client.HTTPClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) ClientOption {
	return func(client *Client) {
		if ua != "" {
			client.UserAgent = ua
		}
	}
}

// WithMaxRetries sets the number of attempts per request
func WithMaxRetries(n int) ClientOption {
	return func(client *Client) {
		if n > 0 {
			client.MaxRetries = n
		}
	}
}

// WithCircuitBreaker replaces the default circuit breaker
func WithCircuitBreaker(cb *infra.CircuitBreaker) ClientOption {
	return func(client *Client) {
		client.CircuitBreaker = cb
	}
}

// NewClient creates a new base client with default settings
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		HTTPClient:     newHTTPClient(DefaultTimeout),
		Logger:         slog.Default(),
		CircuitBreaker: infra.NewCircuitBreaker(),
		Semaphore:      make(chan struct{}, MaxConcurrentRequests),
		UserAgent:      DefaultUserAgent,
		MaxRetries:     DefaultMaxRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CircuitBreakerStats returns the current circuit breaker state
func (c *Client) CircuitBreakerStats() infra.CircuitBreakerStats {
	return c.CircuitBreaker.Stats()
}

// AcquireSlot blocks until a request slot is available or context is canceled
func (c *Client) AcquireSlot(ctx context.Context) error {
	select {
	case c.Semaphore <- struct{}{}:
		return nil
	default:
	}

	metrics.RateLimitWaits.Inc()
	select {
	case c.Semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while waiting for rate limiter: %w", ctx.Err())
	}
}

// ReleaseSlot releases a request slot
func (c *Client) ReleaseSlot() {
	<-c.Semaphore
}

// CheckCircuitBreaker returns nil if requests are allowed, or an error if the circuit is open
func (c *Client) CheckCircuitBreaker() error {
	if !c.CircuitBreaker.Allow() {
		metrics.CircuitOpenRejections.Inc()
		stats := c.CircuitBreaker.Stats()
		return &infra.ErrCircuitOpen{
			RetryAt:  stats.RetryAt,
			Failures: stats.ConsecutiveFails,
		}
	}
	return nil
}

// StatusError is returned for non-retryable HTTP error statuses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wikipedia API returned status %d: %s", e.StatusCode, e.Body)
}

// GetJSON sends a GET to endpoint with params and decodes the JSON body into out.
// action labels the call in metrics and logs.
func (c *Client) GetJSON(ctx context.Context, action, endpoint string, params url.Values, out any) error {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, status, err := c.DoRequest(ctx, RequestConfig{URL: u, Action: action})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &StatusError{StatusCode: status, Body: truncate(string(body), 200)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	return nil
}

// RequestConfig configures a single HTTP request
type RequestConfig struct {
	URL    string
	Action string
}

// DoRequest performs a GET with circuit breaker, rate limiting, and retries.
// Returns the response body and status code; the caller handles response parsing.
func (c *Client) DoRequest(ctx context.Context, cfg RequestConfig) ([]byte, int, error) {
	if err := c.CheckCircuitBreaker(); err != nil {
		return nil, 0, err
	}

	if err := c.AcquireSlot(ctx); err != nil {
		return nil, 0, err
	}
	defer c.ReleaseSlot()

	action := cfg.Action
	if action == "" {
		action = "request"
	}

	maxRetry := c.MaxRetries
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetries
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < maxRetry; attempt++ {
		if attempt > 0 {
			metrics.WikiAPIRetries.Inc()
			backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, 0, fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			}
		}

		// A request may not be reused once its body has been consumed.
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.UserAgent)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			c.Logger.Warn("API request failed, retrying",
				"attempt", attempt+1,
				"action", action,
				"error", err)
			continue
		}
		metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, strconv.Itoa(resp.StatusCode)).Inc()

		body, err := readAndClose(resp)
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if seconds, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil {
				c.Logger.Warn("rate limited by Wikipedia", "retry_after_seconds", seconds, "action", action)
				select {
				case <-time.After(time.Duration(seconds) * time.Second):
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				}
				lastErr = fmt.Errorf("rate limited (429)")
				continue
			}
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(string(body), 200))
			continue
		}

		c.RecordSuccess()
		metrics.RecordAPICall(action, time.Since(start).Seconds(), resp.StatusCode < 400)
		return body, resp.StatusCode, nil
	}

	c.RecordFailure()
	metrics.RecordAPICall(action, time.Since(start).Seconds(), false)
	c.Logger.Error("API request failed after retries", "action", action, "attempts", maxRetry, "error", lastErr)
	return nil, 0, lastErr
}

// RecordSuccess records a successful request with the circuit breaker
func (c *Client) RecordSuccess() {
	c.CircuitBreaker.RecordSuccess()
}

// RecordFailure records a failed request with the circuit breaker
func (c *Client) RecordFailure() {
	c.CircuitBreaker.RecordFailure()
}

// readAndClose reads at most MaxResponseSize bytes of the body and closes it
func readAndClose(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxResponseSize)
	}
	return body, nil
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// newHTTPClient creates an HTTP client with optimized transport settings
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       120 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
