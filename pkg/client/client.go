// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the daemon's control
// surface (spec.md §6.2).
//
// # Getting Started
//
// Create a client pointing to your daemon:
//
//	c := client.New("http://localhost:8080")
//
// The client provides access to different API resources through sub-clients:
//
//	// List all live sessions
//	sessions, err := c.Sessions.List(ctx, nil)
//
//	// Drive the todo state machine forward
//	directive, err := c.Todo.NextWork(ctx, "")
//
//	// Establish a direct peer link between two sessions
//	relay, err := c.Relays.EstablishDirect(ctx, a, b)
//
// # API Versioning
//
// The daemon uses Stripe-style date-based API versioning. By default, the
// client uses the latest API version. You can pin to a specific version
// for stability:
//
//	c := client.New("http://localhost:8080", client.WithVersion("2026-01-17"))
//
// The version is sent via the Teleclaude-Version HTTP header on each request.
//
// # Configuration Options
//
// The client can be configured with functional options:
//
//	c := client.New("http://localhost:8080",
//	    client.WithVersion("2026-01-17"),
//	    client.WithTimeout(60 * time.Second),
//	    client.WithHTTPClient(customHTTPClient),
//	)
//
// # Error Handling
//
// API errors are returned as *APIError values, which include an error code
// and message:
//
//	sess, err := c.Sessions.Get(ctx, "unknown")
//	if err != nil {
//	    if apiErr, ok := err.(*client.APIError); ok {
//	        fmt.Printf("API error: %s - %s\n", apiErr.Code, apiErr.Message)
//	    }
//	}
//
// # Context Support
//
// All API methods accept a context.Context for cancellation and timeouts:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	sessions, err := c.Sessions.List(ctx, nil)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a daemon API client.
//
// A Client provides access to the daemon's control surface through
// resource-specific sub-clients. Use [New] to create a Client instance.
//
// The Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client

	// Sessions provides access to session lifecycle operations
	// (spec.md §4.3).
	Sessions *SessionClient

	// Availability provides access to the agent-availability table and
	// fallback selection (spec.md §4.6).
	Availability *AvailabilityClient

	// Relays provides access to one-to-one and gathering relays
	// (spec.md §4.4).
	Relays *RelayClient

	// Todo drives the todo state machine's next_prepare/next_work/verify
	// operations (spec.md §4.7).
	Todo *TodoClient

	// Worktrees provides access to the trees/{slug} git worktrees backing
	// in-progress work items (spec.md §4.7 step 4, §6.1).
	Worktrees *WorktreeClient

	// Events provides access to the event log and live event stream.
	Events *EventClient

	// Notify lets a session signal a state transition back to the daemon.
	Notify *NotifyClient
}

// Option configures a [Client]. Options are passed to [New] to customize
// client behavior.
type Option func(*Client)

// New creates a new daemon API client with the given base URL and options.
//
// The baseURL should be the root URL of the daemon server (e.g.,
// "http://localhost:8080"). Any trailing slash is automatically removed.
//
// By default, the client uses:
//   - The latest API version ([LatestVersion])
//   - A 30-second HTTP timeout
//
// Use options like [WithVersion], [WithTimeout], or [WithHTTPClient] to
// customize.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Sessions = &SessionClient{c: c}
	c.Availability = &AvailabilityClient{c: c}
	c.Relays = &RelayClient{c: c}
	c.Todo = &TodoClient{c: c}
	c.Worktrees = &WorktreeClient{c: c}
	c.Events = &EventClient{c: c}
	c.Notify = &NotifyClient{c: c}

	return c
}

// WithVersion sets the API version to use for all requests.
//
// The daemon uses Stripe-style date-based versioning (e.g., "2026-01-17").
// Pinning to a specific version ensures API compatibility as the server
// evolves. See the version constants ([LatestVersion], [Version20260117])
// for available versions.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
//
// This is useful for advanced configurations like custom TLS settings,
// proxy configuration, or request tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests.
//
// The default timeout is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError represents an error response from the daemon API.
//
// API errors include a machine-readable Code and a human-readable Message.
// Some errors may include additional Details for debugging.
type APIError struct {
	// Code is a machine-readable error code (e.g., "NOT_FOUND", "BAD_REQUEST").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details contains additional error information, if available.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// get performs a GET request to the given path.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// post performs a POST request to the given path with no body.
func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

// postJSON performs a POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

// delete performs a DELETE request to the given path.
func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do performs an HTTP request and parses the response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(VersionHeader, c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// parseResponse reads and parses an API response.
func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	}

	if apiResp.Error != nil {
		return nil, apiResp.Error
	}

	if resp.StatusCode >= 400 {
		var errData APIError
		if err := json.Unmarshal(apiResp.Data, &errData); err == nil && errData.Code != "" {
			return nil, &errData
		}
	}

	return apiResp.Data, nil
}
