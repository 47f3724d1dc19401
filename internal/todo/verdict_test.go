// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdictApprove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review-findings.md")
	writeFile(t, path, "## Critical\nNone.\n\n## Verdict\nAPPROVE\n")

	v, err := ParseVerdict(path)
	require.NoError(t, err)
	assert.Equal(t, VerdictApprove, v)
}

func TestParseVerdictRequestChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review-findings.md")
	writeFile(t, path, "## Critical\nnil check missing\n\n## Verdict\nREQUEST CHANGES\n")

	v, err := ParseVerdict(path)
	require.NoError(t, err)
	assert.Equal(t, VerdictRequestChanges, v)
}

func TestParseVerdictMissingFileIsNone(t *testing.T) {
	dir := t.TempDir()
	v, err := ParseVerdict(filepath.Join(dir, "review-findings.md"))
	require.NoError(t, err)
	assert.Equal(t, VerdictNone, v)
}

func TestIsReviewFindingsTemplateDetectsUnfilledScaffold(t *testing.T) {
	assert.True(t, isReviewFindingsTemplate("## Critical\n\n## Verdict\n"))
	assert.False(t, isReviewFindingsTemplate("## Critical\nnil check missing\n\n## Verdict\nREQUEST CHANGES\n"))
}
