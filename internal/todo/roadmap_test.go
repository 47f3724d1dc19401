// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseRoadmapTolerantOfDashAndEmDash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roadmap.md")
	writeFile(t, path, "# Roadmap\n\n### [ ] alpha - first thing\n### [>] beta — second thing\n### [x] gamma — done thing\n")

	entries, err := ParseRoadmap(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "alpha", entries[0].Slug)
	assert.Equal(t, "first thing", entries[0].Description)
	assert.Equal(t, ">", entries[1].Status)
	assert.Equal(t, "x", entries[2].Status)
}

func TestResolveSlugPrefersInProgress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roadmap.md")
	writeFile(t, path, "### [ ] alpha — first\n### [>] beta — second\n### [ ] gamma — third\n")

	slug, ok := ResolveSlug(path)
	require.True(t, ok)
	assert.Equal(t, "beta", slug)
}

func TestResolveSlugFallsBackToFirstPending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roadmap.md")
	writeFile(t, path, "### [x] alpha — done\n### [ ] beta — second\n")

	slug, ok := ResolveSlug(path)
	require.True(t, ok)
	assert.Equal(t, "beta", slug)
}

func TestResolveSlugEmptyRoadmapReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roadmap.md")
	writeFile(t, path, "# Roadmap\n")

	_, ok := ResolveSlug(path)
	assert.False(t, ok)
}

func TestPromoteToInProgressRewritesOnlyTheMarker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roadmap.md")
	writeFile(t, path, "### [ ] alpha — first thing\n")

	require.NoError(t, PromoteToInProgress(path, "alpha"))

	entries, err := ParseRoadmap(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ">", entries[0].Status)
	assert.Equal(t, "first thing", entries[0].Description)
}
