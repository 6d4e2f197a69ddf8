// SPDX-License-Identifier: MPL-2.0

// Package netfetch is the generic "fetch a URL, get bytes or failure"
// primitive consumed by the update orchestrator. Retries, TLS, and redirect
// handling are the HTTP client's business; callers only see bytes or an
// error.
package netfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// defaultTimeout bounds a single fetch when the caller's context carries
	// no deadline of its own.
	defaultTimeout = 60 * time.Second

	// defaultMaxBytes is the upper bound on response size (500 MB).
	// Installer payloads are large; anything beyond this is a broken or
	// hostile server.
	defaultMaxBytes = 500 << 20
)

// ErrTruncatedResponse indicates the response exceeded the configured size cap.
var ErrTruncatedResponse = errors.New("response exceeds size limit")

type (
	// StatusError is returned for non-2xx responses.
	StatusError struct {
		URL        string
		StatusCode int
	}

	// Client fetches URLs with a bounded timeout and response size.
	Client struct {
		httpClient *http.Client
		timeout    time.Duration
		maxBytes   int64
		userAgent  string
	}

	// Option configures a Client during construction.
	Option func(*Client)
)

// Error formats the failing URL and status code.
func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy
// configurations.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Client) {
		f.httpClient = c
	}
}

// WithTimeout sets the per-fetch timeout applied when the caller's context
// has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(f *Client) {
		f.timeout = d
	}
}

// WithMaxBytes caps the response body size.
func WithMaxBytes(n int64) Option {
	return func(f *Client) {
		f.maxBytes = n
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Client) {
		f.userAgent = ua
	}
}

// NewClient creates a Client with sensible defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
		maxBytes:   defaultMaxBytes,
		userAgent:  "quill/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch GETs the given URL and returns the full response body. Timeouts,
// connection failures, and non-2xx statuses all surface as errors; callers
// treat them uniformly as network failures.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", redactURL(rawURL), err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{URL: redactURL(rawURL), StatusCode: resp.StatusCode}
	}

	// Read one byte past the cap so an at-limit response is distinguishable
	// from an over-limit one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", redactURL(rawURL), err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("fetching %s: %w", redactURL(rawURL), ErrTruncatedResponse)
	}

	return body, nil
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error messages, preventing accidental exposure of tokens or
// sensitive data.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
