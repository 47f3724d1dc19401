// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// WorktreeClient reports on the trees/{slug} git worktrees backing
// in-progress work items (spec.md §4.7 step 4, §6.1).
//
// Access this client through [Client.Worktrees]:
//
//	worktrees, err := client.Worktrees.List(ctx)
type WorktreeClient struct {
	c *Client
}

// List returns all known worktrees.
func (w *WorktreeClient) List(ctx context.Context) ([]Worktree, error) {
	data, err := w.c.get(ctx, "/api/v1/worktrees")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Worktrees []Worktree `json:"worktrees"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse worktrees: %w", err)
	}

	return resp.Worktrees, nil
}

// WorktreeDetail is a single worktree plus its live git status.
type WorktreeDetail struct {
	Worktree   Worktree  `json:"worktree"`
	Status     GitStatus `json:"status"`
	HasChanges bool      `json:"has_changes"`
}

// Get returns the worktree backing the given item slug, plus its live git
// status.
func (w *WorktreeClient) Get(ctx context.Context, slug string) (*WorktreeDetail, error) {
	data, err := w.c.get(ctx, "/api/v1/worktrees/"+slug)
	if err != nil {
		return nil, err
	}

	var detail WorktreeDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("failed to parse worktree: %w", err)
	}

	return &detail, nil
}

// Remove deletes a worktree, optionally also its branch. The daemon removes
// it with `git worktree remove --force`, so uncommitted changes do not
// prevent removal.
func (w *WorktreeClient) Remove(ctx context.Context, slug string, deleteBranch bool) error {
	path := "/api/v1/worktrees/" + slug
	if deleteBranch {
		path += "?delete_branch=1"
	}
	_, err := w.c.delete(ctx, path)
	return err
}
