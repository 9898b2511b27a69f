package codeocean

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("codeocean: resource not found")
	ErrForbidden    = errors.New("codeocean: access forbidden")
	ErrUnauthorized = errors.New("codeocean: unauthorized")
	ErrServerError  = errors.New("codeocean: server error")
)

// Options configures the API client.
type Options struct {
	// Timeout for individual requests.
	// Default: 30s
	Timeout time.Duration

	// RetryAttempts is the maximum number of retry attempts.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:         30 * time.Second,
		RetryAttempts:   5,
		RetryBackoff:    time.Second,
		RetryMaxBackoff: 30 * time.Second,
	}
}

// Client talks to one Code Ocean deployment.
type Client struct {
	client *http.Client
	opts   Options
	domain string
	token  string
}

// NewClient creates a client for the deployment at domain, authenticating
// with the given API token. The token is sent as the basic-auth user and is
// never written to logs or error messages.
func NewClient(domain, token string, opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 5
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.RetryMaxBackoff == 0 {
		opts.RetryMaxBackoff = 30 * time.Second
	}

	return &Client{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		domain: strings.TrimSuffix(domain, "/"),
		token:  token,
	}
}

// GetComputation fetches the current status of a computation.
func (c *Client) GetComputation(ctx context.Context, computationID string) (*Computation, error) {
	var comp Computation
	path := fmt.Sprintf("/api/v1/computations/%s", url.PathEscape(computationID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &comp); err != nil {
		return nil, fmt.Errorf("get computation %s: %w", computationID, err)
	}
	return &comp, nil
}

// RunCapsule submits a capsule run and returns the created computation.
func (c *Client) RunCapsule(ctx context.Context, params RunParams) (*Computation, error) {
	var comp Computation
	if err := c.do(ctx, http.MethodPost, "/api/v1/computations", nil, params, &comp); err != nil {
		return nil, fmt.Errorf("run capsule %s: %w", params.CapsuleID, err)
	}
	return &comp, nil
}

// ListResults lists one directory level of a computation's result tree.
// An empty path lists the root.
func (c *Client) ListResults(ctx context.Context, computationID, path string) (*Folder, error) {
	var folder Folder
	q := url.Values{}
	if path != "" {
		q.Set("path", path)
	}
	endpoint := fmt.Sprintf("/api/v1/computations/%s/results", url.PathEscape(computationID))
	if err := c.do(ctx, http.MethodGet, endpoint, q, nil, &folder); err != nil {
		return nil, fmt.Errorf("list results %s path %q: %w", computationID, path, err)
	}
	return &folder, nil
}

// ResultDownloadURL resolves a time-limited download URL for one result file.
func (c *Client) ResultDownloadURL(ctx context.Context, computationID, path string) (string, error) {
	var urls FileURLs
	q := url.Values{}
	q.Set("path", path)
	endpoint := fmt.Sprintf("/api/v1/computations/%s/results/download_url", url.PathEscape(computationID))
	if err := c.do(ctx, http.MethodGet, endpoint, q, nil, &urls); err != nil {
		return "", fmt.Errorf("resolve download url %s path %q: %w", computationID, path, err)
	}
	if urls.DownloadURL == "" {
		return "", fmt.Errorf("resolve download url %s path %q: empty url in response", computationID, path)
	}
	return urls.DownloadURL, nil
}

// do performs one API request with retries. Transport errors and 5xx
// responses are retried with exponential backoff; 4xx responses map to
// sentinel errors and are returned immediately.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.domain + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.SetBasicAuth(c.token, "")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d %s", ErrServerError, resp.StatusCode, resp.Status)
			continue
		}

		if err := checkStatusCode(resp.StatusCode); err != nil {
			resp.Body.Close()
			return err
		}

		if out != nil {
			err = json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		} else {
			resp.Body.Close()
		}
		return nil
	}

	return fmt.Errorf("request failed after %d attempts: %w", c.opts.RetryAttempts+1, lastErr)
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}
