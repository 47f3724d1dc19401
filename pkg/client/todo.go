// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// TodoClient drives the todo state machine's next_prepare/next_work/verify
// operations (spec.md §4.7).
type TodoClient struct {
	c *Client
}

// NextPrepare picks the next unprepared item (or the named slug) and
// advances it to prepared, returning the directive to hand to a prepare
// agent.
func (t *TodoClient) NextPrepare(ctx context.Context, slug string) (*Directive, error) {
	return t.next(ctx, "/api/v1/todo/next-prepare", slug)
}

// NextWork advances the named (or next-picked) item's build/review/
// finalize pipeline by one tool call, returning the directive to hand to
// the next agent in the pipeline.
func (t *TodoClient) NextWork(ctx context.Context, slug string) (*Directive, error) {
	return t.next(ctx, "/api/v1/todo/next-work", slug)
}

func (t *TodoClient) next(ctx context.Context, path, slug string) (*Directive, error) {
	if slug != "" {
		path += "?slug=" + slug
	}
	data, err := t.c.post(ctx, path)
	if err != nil {
		return nil, err
	}

	var d Directive
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse directive: %w", err)
	}
	return &d, nil
}

// Verify runs the mechanical verify-artifacts predicate for an item's
// current phase ("build" or "review"; empty defaults to "build").
func (t *TodoClient) Verify(ctx context.Context, slug, phase string) (*VerifyResult, error) {
	path := "/api/v1/todo/" + slug + "/verify"
	if phase != "" {
		path += "?phase=" + phase
	}

	data, err := t.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var res VerifyResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse verify result: %w", err)
	}
	return &res, nil
}
