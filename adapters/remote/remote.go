// Package remote provides the hosted-mode providers, which delegate to the
// hosted control plane over HTTP: billing, analytics and video.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/cmskit/core/capability"
)

// Client provides HTTP communication with the control plane.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	headers    map[string]string
}

// ClientConfig configures the remote client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Headers map[string]string
}

// NewClient creates a new remote HTTP client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		headers:    cfg.Headers,
	}
}

// Ping checks that the control plane answers. Hosted providers call it
// while they are built so that an unreachable backend falls back at start.
func (c *Client) Ping(ctx context.Context) error {
	if c.baseURL == "" {
		return errors.New("remote base url is not configured")
	}
	return c.Request(ctx, http.MethodGet, "/health", nil, nil)
}

// Request sends a JSON request and decodes a JSON response into result.
func (c *Client) Request(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	return c.Do(ctx, method, path, bodyReader, "application/json", nil, result)
}

// Do sends a request with a raw body. Extra headers are set after the
// configured ones.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string, headers map[string]string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// RemoteError represents an error from the control plane.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps status codes with a declared meaning to capability errors,
// so callers can match them with errors.Is.
func (e *RemoteError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusForbidden:
		return capability.ErrForbidden
	case http.StatusPaymentRequired, http.StatusRequestEntityTooLarge:
		return capability.ErrQuotaExceeded
	case http.StatusNotImplemented:
		return capability.ErrNotAvailableInMode
	}
	return nil
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode == http.StatusNotFound
	}
	return false
}
