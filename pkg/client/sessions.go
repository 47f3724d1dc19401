// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// SessionClient provides access to session lifecycle operations
// (spec.md §4.3).
//
// Access this client through [Client.Sessions]:
//
//	sessions, err := client.Sessions.List(ctx, nil)
type SessionClient struct {
	c *Client
}

// SessionListOptions filters session listing.
type SessionListOptions struct {
	AgentKind     string
	IncludeClosed bool
}

// List returns sessions matching opts.
func (s *SessionClient) List(ctx context.Context, opts *SessionListOptions) ([]Session, error) {
	path := "/api/v1/sessions"
	if opts != nil {
		params := url.Values{}
		if opts.AgentKind != "" {
			params.Set("agent_kind", opts.AgentKind)
		}
		if opts.IncludeClosed {
			params.Set("include_closed", "1")
		}
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
	}

	data, err := s.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Sessions []Session `json:"sessions"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return resp.Sessions, nil
}

// CreateRequest spawns a session directly, bypassing the todo dispatch
// loop — used for ad-hoc human/peer sessions.
type CreateRequest struct {
	AgentKind   string `json:"agent_kind"`
	Role        string `json:"role"`
	ProjectPath string `json:"project_path"`
	Subfolder   string `json:"subfolder"`
}

// Create spawns a new session.
func (s *SessionClient) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	data, err := s.c.postJSON(ctx, "/api/v1/sessions", req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Session Session `json:"session"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &resp.Session, nil
}

// Get returns a session by ID.
func (s *SessionClient) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.c.get(ctx, "/api/v1/sessions/"+id)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Session Session `json:"session"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &resp.Session, nil
}

// Close tombstones a session.
func (s *SessionClient) Close(ctx context.Context, id, reason string) error {
	path := "/api/v1/sessions/" + id
	if reason != "" {
		path += "?" + url.Values{"reason": {reason}}.Encode()
	}
	_, err := s.c.delete(ctx, path)
	return err
}

// SendText writes text to a session's pane, optionally appending the
// bridge's exit-marker sentinel so a waiting poller observes completion.
func (s *SessionClient) SendText(ctx context.Context, id, text string, appendExitMarker bool) error {
	req := map[string]interface{}{
		"text":               text,
		"append_exit_marker": appendExitMarker,
	}
	_, err := s.c.postJSON(ctx, "/api/v1/sessions/"+id+"/send", req)
	return err
}
