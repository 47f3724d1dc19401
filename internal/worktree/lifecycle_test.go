// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/events"
)

func TestRunOnCreateRunsHooksInOrder(t *testing.T) {
	dir := t.TempDir()
	wt := &WorktreeInfo{Path: dir, Branch: "widget"}

	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 50})
	runner := NewLifecycleRunner(bus)

	hooks := []config.HookConfig{
		{Name: "touch-marker", Command: []string{"touch", "marker.txt"}},
	}

	results, err := runner.RunOnCreate(context.Background(), wt, hooks)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "touch-marker", results[0].Name)
}

func TestRunOnCreateStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	wt := &WorktreeInfo{Path: dir, Branch: "widget"}

	runner := NewLifecycleRunner(nil)
	hooks := []config.HookConfig{
		{Name: "fails", Command: []string{"false"}},
		{Name: "never-runs", Command: []string{"touch", "marker.txt"}},
	}

	results, err := runner.RunOnCreate(context.Background(), wt, hooks)
	require.Error(t, err)
	require.Len(t, results, 1, "the second hook must not run after the first fails")
	assert.False(t, results[0].Success)
}
