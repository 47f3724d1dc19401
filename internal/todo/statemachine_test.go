// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/worktree"
)

// initGitRepoWithCommits creates a real git repo at dir with nCommits
// commits, mirroring the worktree package's own real-git integration
// test idiom (testing.Short() skip guard at the call site).
func initGitRepoWithCommits(t *testing.T, dir string, nCommits int) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	for i := 0; i < nCommits; i++ {
		writeFile(t, filepath.Join(dir, "file.txt"), string(rune('a'+i)))
		run("add", ".")
		run("commit", "-q", "-m", "commit")
	}
}

type fakePicker struct{}

func (fakePicker) Pick(taskType string) (string, string, bool) {
	return "claude", "slow", true
}

// fakeWorktreeManager is a minimal stand-in that treats any slug's
// worktree as already present and clean.
type fakeWorktreeManager struct {
	status worktree.GitStatus
}

func (m *fakeWorktreeManager) EnsureWorktree(ctx context.Context, slug string) (*worktree.WorktreeInfo, error) {
	return &worktree.WorktreeInfo{Path: slug}, nil
}
func (m *fakeWorktreeManager) GetBySlug(slug string) (worktree.WorktreeInfo, bool) {
	return worktree.WorktreeInfo{Path: slug}, true
}
func (m *fakeWorktreeManager) Status(slug string) (worktree.GitStatus, error) { return m.status, nil }
func (m *fakeWorktreeManager) Remove(ctx context.Context, slug string, deleteBranch bool) error {
	return nil
}
func (m *fakeWorktreeManager) List() ([]worktree.WorktreeInfo, error) { return nil, nil }
func (m *fakeWorktreeManager) Refresh() error                         { return nil }

// slowWorktreeManager counts EnsureWorktree calls and blocks briefly on
// each one, wide enough a window for concurrent callers to collide.
type slowWorktreeManager struct {
	fakeWorktreeManager
	calls int32
}

func (m *slowWorktreeManager) EnsureWorktree(ctx context.Context, slug string) (*worktree.WorktreeInfo, error) {
	atomic.AddInt32(&m.calls, 1)
	time.Sleep(20 * time.Millisecond)
	return &worktree.WorktreeInfo{Path: slug}, nil
}

func TestNextWorkCollapsesConcurrentEnsureWorktreeForSameSlug(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "todos", "roadmap.md"), "- [ ] widget\n")
	writeFile(t, filepath.Join(dir, "todos", "widget", "requirements.md"), "done\n")
	writeFile(t, filepath.Join(dir, "todos", "widget", "implementation-plan.md"), "done\n")

	wt := &slowWorktreeManager{fakeWorktreeManager: fakeWorktreeManager{status: worktree.GitStatus{Clean: true}}}
	e := NewEngine(dir, fakePicker{}, wt, 0)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			e.NextWork(context.Background(), "widget")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&wt.calls),
		"concurrent ensure_worktree calls for the same slug must collapse into one")
}

func TestNextWorkEmptyRoadmapReturnsNoWork(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "todos", "roadmap.md"), "# Roadmap\n")

	e := NewEngine(dir, fakePicker{}, nil, 0)
	d := e.NextWork(context.Background(), "")

	assert.Equal(t, DirectiveError, d.Kind)
	assert.Equal(t, ErrCodeNoWork, d.ErrorCode)
	assert.Equal(t, "No pending items in roadmap.", d.Message)
}

func TestNextPrepareFreshSlugDispatchesToolCallAndPromotes(t *testing.T) {
	dir := t.TempDir()
	roadmapPath := filepath.Join(dir, "todos", "roadmap.md")
	writeFile(t, roadmapPath, "### [ ] alpha — first thing\n")

	e := NewEngine(dir, fakePicker{}, nil, 0)
	d := e.NextPrepare(context.Background(), "")

	require.Equal(t, DirectiveToolCall, d.Kind)
	assert.Equal(t, "next-prepare", d.Command)
	assert.Equal(t, "alpha", d.Args)
	assert.Equal(t, dir, d.Project)
	assert.Equal(t, "claude", d.Agent)
	assert.Equal(t, "slow", d.ThinkingTier)
	assert.Equal(t, "", d.Subfolder)
	assert.Contains(t, d.Note, "engage as collaborator")

	entries, err := ParseRoadmap(roadmapPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ">", entries[0].Status, "roadmap must be promoted to in-progress")
}

func TestNextWorkNotPreparedWhenArtifactsMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "todos", "roadmap.md"), "### [>] alpha — first thing\n")

	e := NewEngine(dir, fakePicker{}, nil, 0)
	d := e.NextWork(context.Background(), "")

	assert.Equal(t, DirectiveError, d.Kind)
	assert.Equal(t, ErrCodeNotPrepared, d.ErrorCode)
}

func TestNextWorkBuilderChurnDispatchesNextBuild(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "todos", "roadmap.md"), "### [>] alpha — first thing\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "requirements.md"), "requirements\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "implementation-plan.md"),
		"## Group 1\n- [ ] task one\n- [ ] task two\n- [ ] task three\n")

	wt := &fakeWorktreeManager{status: worktree.GitStatus{Clean: true}}
	e := NewEngine(dir, fakePicker{}, wt, 0)
	e.Gates = nil // skip headless gates in this unit test; gates.go is tested separately

	d := e.NextWork(context.Background(), "alpha")

	require.Equal(t, DirectiveToolCall, d.Kind)
	assert.Equal(t, "next-build", d.Command)
	assert.Equal(t, "alpha", d.Args)
	assert.Contains(t, d.Subfolder, filepath.Join("trees", "alpha"))
}

func TestNextWorkDispatchesCommitPendingWhenWorktreeDirty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "todos", "roadmap.md"), "### [>] alpha — first thing\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "requirements.md"), "requirements\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "implementation-plan.md"), "- [ ] task\n")

	wt := &fakeWorktreeManager{status: worktree.GitStatus{Modified: []string{"main.go"}}}
	e := NewEngine(dir, fakePicker{}, wt, 0)

	d := e.NextWork(context.Background(), "alpha")

	require.Equal(t, DirectiveToolCall, d.Kind)
	assert.Equal(t, "commit-pending", d.Command)
}

func TestNextWorkCompleteOKWhenDoneDirExists(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "todos", "roadmap.md"), "### [>] alpha — first thing\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "done", "0001-alpha"), 0o755))

	e := NewEngine(dir, fakePicker{}, nil, 0)
	d := e.NextWork(context.Background(), "alpha")

	require.Equal(t, DirectiveCompleteOK, d.Kind)
	assert.Equal(t, "alpha", d.Slug)
	assert.Contains(t, d.ArchivePath, "0001-alpha")
}

func TestNextWorkRequestChangesAtRoundLimitAppliesClosurePolicy(t *testing.T) {
	if testing.Short() {
		t.Skip("shells out to real git")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "todos", "roadmap.md"), "### [>] alpha — first thing\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "requirements.md"), "requirements\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "implementation-plan.md"), "- [x] task\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "review-findings.md"),
		"## Critical\nstill broken\n\n## Verdict\nREQUEST CHANGES\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "quality-checklist.md"), "## Build Gates\n- [x] tests pass\n")
	require.NoError(t, SaveState(dir, "alpha", State{Phase: PhaseReview, ReviewRound: 3}))

	treeDir := filepath.Join(dir, "trees", "alpha")
	require.NoError(t, os.MkdirAll(treeDir, 0o755))
	initGitRepoWithCommits(t, treeDir, 2)

	wt := &fakeWorktreeManager{status: worktree.GitStatus{Clean: true}}
	e := NewEngine(dir, fakePicker{}, wt, 3)
	e.Gates = nil

	d := e.NextWork(context.Background(), "alpha")

	require.Equal(t, DirectiveError, d.Kind)
	assert.Equal(t, ErrCodeVerify, d.ErrorCode)

	st, ok, err := LoadState(dir, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, st.Blocked)
}

func TestNextWorkApproveDispatchesFinalizeInMainRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("shells out to real git")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "todos", "roadmap.md"), "### [>] alpha — first thing\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "requirements.md"), "requirements\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "implementation-plan.md"), "- [x] task\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "review-findings.md"),
		"## Critical\nNone.\n\n## Verdict\nAPPROVE\n")
	writeFile(t, filepath.Join(dir, "todos", "alpha", "quality-checklist.md"), "## Build Gates\n- [x] tests pass\n")

	treeDir := filepath.Join(dir, "trees", "alpha")
	require.NoError(t, os.MkdirAll(treeDir, 0o755))
	initGitRepoWithCommits(t, treeDir, 2)

	wt := &fakeWorktreeManager{status: worktree.GitStatus{Clean: true}}
	e := NewEngine(dir, fakePicker{}, wt, 0)
	e.Gates = nil

	d := e.NextWork(context.Background(), "alpha")

	require.Equal(t, DirectiveToolCall, d.Kind)
	assert.Equal(t, "next-finalize", d.Command)
	assert.Equal(t, "", d.Subfolder, "finalize must run from the main repo, not the worktree")
}
