package textgen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Client wraps a Backend with rate limiting, a retry loop, and an
// overall per-request timeout.
type Client struct {
	backend    Backend
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Option func(*Client)

func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithRetryDelay scales the linear backoff between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

func WithClientLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:    backend,
		maxRetries: 3,
		retryDelay: time.Second,
		timeout:    2 * time.Minute,
		limiter:    rate.NewLimiter(rate.Limit(0.5), 5),
		logger:     slog.Default().With("component", "textgen"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("generation client ready",
		"backend", backend.Name(),
		"max_retries", c.maxRetries,
		"timeout", c.timeout,
		"rate_per_sec", float64(c.limiter.Limit()))

	return c
}

// Generate runs the request against the backend, retrying transient
// failures with linear backoff. The configured timeout bounds the
// whole call including waits between attempts.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	id := fmt.Sprintf("gen_%d", time.Now().UnixNano())
	start := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Error("limiter wait aborted", "request_id", id, "error", err)
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}
	c.logger.Debug("dispatching generation request",
		"request_id", id,
		"backend", c.backend.Name(),
		"queued_ms", time.Since(start).Milliseconds(),
		"prompt_length", len(req.Prompt))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.pause(ctx, id, attempt); err != nil {
				return "", err
			}
		}

		began := time.Now()
		text, err := c.backend.Generate(ctx, req)
		took := time.Since(began)

		if err == nil {
			c.logger.Info("generation succeeded",
				"request_id", id,
				"attempt", attempt,
				"attempt_ms", took.Milliseconds(),
				"response_length", len(text),
				"elapsed_ms", time.Since(start).Milliseconds())
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			c.logger.Warn("generation cancelled", "request_id", id, "attempt", attempt, "error", err)
			return "", err
		}
		c.logger.Warn("generation attempt failed",
			"request_id", id,
			"attempt", attempt,
			"attempt_ms", took.Milliseconds(),
			"error", err)
	}

	c.logger.Error("generation exhausted retries",
		"request_id", id,
		"max_retries", c.maxRetries,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"last_error", lastErr)

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// pause sleeps for the attempt's linear backoff or returns early when
// the context ends first.
func (c *Client) pause(ctx context.Context, id string, attempt int) error {
	backoff := time.Duration(attempt) * c.retryDelay
	c.logger.Debug("backing off before retry", "request_id", id, "attempt", attempt, "backoff", backoff)

	select {
	case <-time.After(backoff):
		return nil
	case <-ctx.Done():
		c.logger.Warn("cancelled during backoff", "request_id", id, "attempt", attempt)
		return ctx.Err()
	}
}
