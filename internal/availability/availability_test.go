// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/registry"
)

func testMatrix() []config.FallbackRule {
	return []config.FallbackRule{
		{
			TaskType: "build",
			Candidates: []config.FallbackCandidate{
				{AgentKind: "claude", ThinkingTier: "fast"},
				{AgentKind: "codex", ThinkingTier: "medium"},
			},
		},
	}
}

func TestIsAvailableDefaultsToTrue(t *testing.T) {
	tr := NewTracker(testMatrix(), nil)
	assert.True(t, tr.IsAvailable(registry.AgentClaude))
}

func TestMarkUnavailableThenAvailable(t *testing.T) {
	tr := NewTracker(testMatrix(), nil)
	tr.MarkUnavailable(context.Background(), registry.AgentClaude, time.Now().Add(time.Hour), "rate limited")
	assert.False(t, tr.IsAvailable(registry.AgentClaude))

	tr.MarkAvailable(context.Background(), registry.AgentClaude)
	assert.True(t, tr.IsAvailable(registry.AgentClaude))
}

func TestUnavailableRecordExpiresLazily(t *testing.T) {
	tr := NewTracker(testMatrix(), nil)
	tr.MarkUnavailable(context.Background(), registry.AgentClaude, time.Now().Add(-time.Minute), "past outage")
	assert.True(t, tr.IsAvailable(registry.AgentClaude))
}

func TestSelectCandidateSkipsUnavailable(t *testing.T) {
	tr := NewTracker(testMatrix(), nil)
	tr.MarkUnavailable(context.Background(), registry.AgentClaude, time.Now().Add(time.Hour), "rate limited")

	cand, ok := tr.SelectCandidate("build")
	assert.True(t, ok)
	assert.Equal(t, registry.AgentCodex, cand.AgentKind)
}

func TestSelectCandidateReturnsSoonestWhenAllUnavailable(t *testing.T) {
	tr := NewTracker(testMatrix(), nil)
	tr.MarkUnavailable(context.Background(), registry.AgentClaude, time.Now().Add(2*time.Hour), "rate limited")
	tr.MarkUnavailable(context.Background(), registry.AgentCodex, time.Now().Add(time.Hour), "rate limited")

	cand, ok := tr.SelectCandidate("build")
	assert.True(t, ok)
	assert.Equal(t, registry.AgentCodex, cand.AgentKind, "codex becomes available sooner")
}

func TestSelectCandidateUnknownTaskTypeReturnsFalse(t *testing.T) {
	tr := NewTracker(testMatrix(), nil)
	_, ok := tr.SelectCandidate("nonexistent")
	assert.False(t, ok)
}
