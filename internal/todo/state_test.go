// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadStateRoundTrips(t *testing.T) {
	dir := t.TempDir()
	st := State{Phase: PhaseReview, Build: StatusComplete, Review: StatusChangesRequested, ReviewRound: 2}

	require.NoError(t, SaveState(dir, "alpha", st))

	loaded, ok, err := LoadState(dir, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st, loaded)
}

func TestLoadStateMissingFileReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := LoadState(dir, "alpha")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnyDoneDirForFindsSequencedDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/done/0007-alpha/archive.md", "done\n")

	path, found := anyDoneDirFor(dir, "alpha")
	require.True(t, found)
	assert.Contains(t, path, "0007-alpha")
}
