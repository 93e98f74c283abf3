// Package api is the typed HTTP client for the task backend: task and share
// gateways plus the session-exchange endpoints. All requests carry the backend
// session cookie via the underlying http.Client's jar.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/and161185/taskdeck/internal/errs"
)

const maxErrBody = 8 << 10

// Client talks to one backend base URL.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient constructs a Client. When hc is nil a default client with a cookie
// jar and a 30s timeout is used; the jar is what persists the backend session
// across calls.
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		jar, _ := cookiejar.New(nil)
		hc = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), hc: hc}
}

// HTTPClient exposes the underlying client so callers can persist its cookie jar.
func (c *Client) HTTPClient() *http.Client { return c.hc }

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.base }

// do performs one JSON round-trip. A nil out skips body decoding; 204 responses
// are treated as void. Non-2xx responses become *errs.APIError with the body
// text captured best-effort.
func (c *Client) do(ctx context.Context, method, path string, hdr http.Header, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(res.Body, maxErrBody))
		return &errs.APIError{
			Method: method,
			Path:   path,
			Status: res.StatusCode,
			Body:   strings.TrimSpace(string(text)),
		}
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
