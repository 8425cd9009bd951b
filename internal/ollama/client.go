// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is read into an error.
const maxErrorBody = 64 << 10

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// HeaderProvider supplies per-request headers, typically Authorization.
// It is consulted on every request so a token stored mid-session is picked up.
type HeaderProvider interface {
	AuthHeaders() map[string]string
}

// HeaderFunc adapts a function to HeaderProvider.
type HeaderFunc func() map[string]string

// AuthHeaders implements HeaderProvider.
func (f HeaderFunc) AuthHeaders() map[string]string { return f() }

// ClientConfig holds configuration options for the gateway client.
type ClientConfig struct {
	// BaseURL is the gateway API root (default: http://127.0.0.1:8000/api)
	BaseURL string

	// Endpoint paths, appended to BaseURL.
	ChatPath  string
	TagsPath  string
	QuotaPath string

	// Timeout bounds the short metadata requests (tags, quota).
	// Chat requests are bounded only by their context.
	Timeout time.Duration

	// Headers supplies auth headers. May be nil.
	Headers HeaderProvider

	// HTTPClient overrides the transport. Default: a client with no timeout.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:   "http://127.0.0.1:8000/api",
		ChatPath:  "/chat",
		TagsPath:  "/tags",
		QuotaPath: "/user/rate-limit",
		Timeout:   30 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the inference gateway.
//
// The Client is thread-safe for concurrent use.
//
// Example:
//
//	client := ollama.NewClient(ollama.DefaultConfig())
//	models, err := client.ListModels(ctx)
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a client. Zero-valued config fields take defaults.
func NewClient(config *ClientConfig) *Client {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ChatPath == "" {
		cfg.ChatPath = defaults.ChatPath
	}
	if cfg.TagsPath == "" {
		cfg.TagsPath = defaults.TagsPath
	}
	if cfg.QuotaPath == "" {
		cfg.QuotaPath = defaults.QuotaPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No client-level timeout: streams can legitimately run for minutes.
		httpClient = &http.Client{}
	}

	return &Client{config: &cfg, httpClient: httpClient}
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// =============================================================================
// CHAT
// =============================================================================

// Response is a successful (2xx) chat response whose body has not been read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Close drains and closes the body.
func (r *Response) Close() {
	drainAndClose(r.Body)
}

// Decode reads the whole body as one ChatResponse and closes it.
func (r *Response) Decode() (*ChatResponse, error) {
	defer r.Close()
	var result ChatResponse
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		if ctxErr := bodyContextError(err); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &result, nil
}

// Send posts a chat request. On a 2xx status the caller owns the returned
// body. Any other status is read and returned as *AuthError,
// *RateLimitError, or *HTTPError; the body is never treated as a stream.
func (c *Client) Send(ctx context.Context, req ChatRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.config.ChatPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if req.Stream {
		httpReq.Header.Set("Accept", "application/x-ndjson")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drainAndClose(resp.Body)
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil && len(data) == 0 {
			return nil, transportError(readErr)
		}
		return nil, statusError(resp.StatusCode, data)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

// =============================================================================
// METADATA ENDPOINTS
// =============================================================================

// ListModels returns the models the gateway offers.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var result ListModelsResponse
	if err := c.getJSON(ctx, c.config.TagsPath, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// FetchQuota returns the caller's rate-limit status.
func (c *Client) FetchQuota(ctx context.Context) (*QuotaStatus, error) {
	var result QuotaStatus
	if err := c.getJSON(ctx, c.config.QuotaPath, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Headers != nil {
		for k, v := range c.config.Headers.AuthHeaders() {
			req.Header.Set(k, v)
		}
	}
	return req, nil
}

// bodyContextError maps a body read interrupted by cancellation to a
// ClientError; other errors yield nil.
func bodyContextError(err error) error {
	if IsCanceled(err) || IsTimeout(err) {
		return transportError(err)
	}
	return nil
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
	r.Close()
}
