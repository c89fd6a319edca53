// Package httpclient wraps net/http with a request rate limit and
// exponential-backoff retries for market data providers and webhooks.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Client is a wrapper for HTTP client with rate limiting
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	maxElapsed time.Duration
	maxRetries uint64
}

// Options holds options for creating a new Client
type Options struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// New creates a new HTTP client with rate limiting
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RequestsPerSec)), opts.RequestsPerSec),
		maxElapsed: opts.MaxRetryTimeout,
		maxRetries: uint64(opts.MaxRetries),
	}
}

// Get fetches url and returns the body of a 2xx response. Transport errors
// and 429/5xx statuses are retried; other statuses fail immediately.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, url, header, nil)
}

// Post sends a JSON payload with the same retry policy as Get.
func (c *Client) Post(ctx context.Context, url string, header http.Header, payload []byte) ([]byte, error) {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	return c.Do(ctx, http.MethodPost, url, h, payload)
}

// Do performs one logical request, retrying it under the client policy.
// The payload is replayed from the start on every attempt.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, payload []byte) ([]byte, error) {
	var body []byte
	operation := func() error {
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, resp.Body)
			statusErr := &HTTPStatusError{StatusCode: resp.StatusCode}
			if !statusErr.Retryable() {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = c.maxElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(backoffStrategy, c.maxRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// HTTPStatusError represents an error due to a non-2xx HTTP status code
type HTTPStatusError struct {
	StatusCode int
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return "unexpected status code: " + http.StatusText(e.StatusCode)
}

// Retryable reports whether the status is worth retrying.
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
