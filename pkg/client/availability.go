// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// AvailabilityClient provides access to the agent-availability table and
// fallback selection (spec.md §4.6).
type AvailabilityClient struct {
	c *Client
}

// List returns the availability record for every agent kind.
func (a *AvailabilityClient) List(ctx context.Context) (map[string]AvailabilityRecord, error) {
	data, err := a.c.get(ctx, "/api/v1/availability")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Availability map[string]AvailabilityRecord `json:"availability"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse availability: %w", err)
	}
	return resp.Availability, nil
}

// Get returns the availability record for a single agent kind.
func (a *AvailabilityClient) Get(ctx context.Context, kind string) (*AvailabilityRecord, error) {
	data, err := a.c.get(ctx, "/api/v1/availability/"+kind)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Record AvailabilityRecord `json:"record"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse availability record: %w", err)
	}
	return &resp.Record, nil
}

// MarkUnavailable marks an agent kind unavailable for untilSeconds, with an
// optional human-readable reason recorded for operator visibility.
func (a *AvailabilityClient) MarkUnavailable(ctx context.Context, kind string, untilSeconds int, reason string) error {
	req := map[string]interface{}{
		"until_seconds": untilSeconds,
		"reason":        reason,
	}
	_, err := a.c.postJSON(ctx, "/api/v1/availability/"+kind+"/unavailable", req)
	return err
}

// MarkAvailable clears an unavailability window early.
func (a *AvailabilityClient) MarkAvailable(ctx context.Context, kind string) error {
	_, err := a.c.post(ctx, "/api/v1/availability/"+kind+"/available")
	return err
}
