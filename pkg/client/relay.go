// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// RelayClient provides access to one-to-one and gathering relays
// (spec.md §4.4).
type RelayClient struct {
	c *Client
}

// ParticipantRequest describes one participant in an EstablishDirect or
// StartGathering call. Role is one of "speaker" (default), "harvester", or
// "human".
type ParticipantRequest struct {
	SessionID      string `json:"session_id"`
	TerminalHandle string `json:"terminal_handle"`
	DisplayName    string `json:"display_name"`
	Role           string `json:"role"`
}

// EstablishDirect creates (or returns the existing) one-to-one relay
// between two participants.
func (rc *RelayClient) EstablishDirect(ctx context.Context, a, b ParticipantRequest) (*Relay, error) {
	req := map[string]interface{}{"a": a, "b": b}
	data, err := rc.c.postJSON(ctx, "/api/v1/relays", req)
	if err != nil {
		return nil, err
	}

	var rel Relay
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("failed to parse relay: %w", err)
	}
	return &rel, nil
}

// StartGathering creates a gathering relay with exactly one harvester and
// one or more speakers.
func (rc *RelayClient) StartGathering(ctx context.Context, participants []ParticipantRequest) (*Relay, error) {
	req := map[string]interface{}{"participants": participants}
	data, err := rc.c.postJSON(ctx, "/api/v1/relays/gatherings", req)
	if err != nil {
		return nil, err
	}

	var rel Relay
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("failed to parse relay: %w", err)
	}
	return &rel, nil
}

// Get returns a relay's current state.
func (rc *RelayClient) Get(ctx context.Context, id string) (*Relay, error) {
	data, err := rc.c.get(ctx, "/api/v1/relays/"+id)
	if err != nil {
		return nil, err
	}

	var rel Relay
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("failed to parse relay: %w", err)
	}
	return &rel, nil
}

// End deactivates a relay.
func (rc *RelayClient) End(ctx context.Context, id string) error {
	_, err := rc.c.delete(ctx, "/api/v1/relays/"+id)
	return err
}
