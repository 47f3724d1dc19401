// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/events"
)

// WorktreeManager manages the trees/{slug} git worktrees.
type WorktreeManager struct {
	mu        sync.RWMutex
	ensureMu  sync.Mutex // serializes this manager's own EnsureWorktree body; internal/todo.Engine additionally collapses concurrent calls for the same slug via singleflight before they ever reach here
	git       GitExecutor
	bus       events.EventBus
	repoDir   string
	treesDir  string
	onCreate  []config.HookConfig
	lifecycle *LifecycleRunner
	worktrees []WorktreeInfo
}

// NewManager creates a new worktree manager. repoDir is the main repository
// (where `git worktree add` is run); treesDir is the directory new worktrees
// are created under (defaults to repoDir/trees).
func NewManager(git GitExecutor, bus events.EventBus, cfg config.WorktreeConfig, repoDir string) *WorktreeManager {
	treesDir := cfg.TreesDir
	if treesDir == "" {
		treesDir = "trees"
	}
	if !filepath.IsAbs(treesDir) {
		treesDir = filepath.Join(repoDir, treesDir)
	}

	mgr := &WorktreeManager{
		git:       git,
		bus:       bus,
		repoDir:   repoDir,
		treesDir:  treesDir,
		onCreate:  cfg.OnCreate,
		lifecycle: NewLifecycleRunner(bus),
	}
	mgr.Refresh()
	return mgr
}

// List returns all known worktrees.
func (m *WorktreeManager) List() ([]WorktreeInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]WorktreeInfo, len(m.worktrees))
	copy(result, m.worktrees)
	return result, nil
}

// Refresh reloads the worktree list from git.
func (m *WorktreeManager) Refresh() error {
	ctx := context.Background()
	worktrees, err := m.git.WorktreeList(ctx, m.repoDir)
	if err != nil {
		return err
	}

	defaultBranch := GetDefaultBranch(ctx, m.repoDir)
	for i := range worktrees {
		wt := &worktrees[i]
		if wt.IsBare {
			continue
		}
		wt.Dirty = IsDirty(ctx, wt.Path)
		if !wt.Detached && wt.Branch != "" && wt.Branch != defaultBranch {
			wt.Ahead, wt.Behind = GetAheadBehind(ctx, wt.Path, defaultBranch)
		}
	}

	m.mu.Lock()
	m.worktrees = worktrees
	m.mu.Unlock()
	return nil
}

func (m *WorktreeManager) slugPath(slug string) string {
	return filepath.Join(m.treesDir, slug)
}

// GetBySlug returns the worktree for a slug, if it exists.
func (m *WorktreeManager) GetBySlug(slug string) (WorktreeInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	path := m.slugPath(slug)
	for _, wt := range m.worktrees {
		if wt.Path == path {
			return wt, true
		}
	}
	return WorktreeInfo{}, false
}

// EnsureWorktree implements spec §4.7 step 4: create trees/{slug} on a branch
// named slug if it does not already exist, otherwise return the existing one.
func (m *WorktreeManager) EnsureWorktree(ctx context.Context, slug string) (*WorktreeInfo, error) {
	m.ensureMu.Lock()
	defer m.ensureMu.Unlock()

	if wt, ok := m.GetBySlug(slug); ok {
		return &wt, nil
	}

	path := m.slugPath(slug)

	// Branch may already exist without a live worktree (e.g. after a crash);
	// reuse it rather than failing.
	var cmd *exec.Cmd
	checkBranch := exec.CommandContext(ctx, "git", "-C", m.repoDir, "rev-parse", "--verify", slug)
	if checkBranch.Run() == nil {
		cmd = exec.CommandContext(ctx, "git", "-C", m.repoDir, "worktree", "add", path, slug)
	} else {
		cmd = exec.CommandContext(ctx, "git", "-C", m.repoDir, "worktree", "add", "-b", slug, path)
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ensure_worktree %s: %s: %w", slug, strings.TrimSpace(string(output)), err)
	}

	if err := m.Refresh(); err != nil {
		return nil, fmt.Errorf("refresh after worktree create: %w", err)
	}

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{
			Type:     events.EventWorktreeCreated,
			Worktree: slug,
			Payload: map[string]interface{}{
				"slug": slug,
				"path": path,
			},
		})
	}

	wt, ok := m.GetBySlug(slug)
	if !ok {
		return nil, fmt.Errorf("worktree %s created but not found after refresh", slug)
	}

	if len(m.onCreate) > 0 {
		if _, err := m.lifecycle.RunOnCreate(ctx, &wt, m.onCreate); err != nil {
			return nil, fmt.Errorf("ensure_worktree %s: %w", slug, err)
		}
	}

	return &wt, nil
}

// Status returns the git status of the worktree for a slug.
func (m *WorktreeManager) Status(slug string) (GitStatus, error) {
	wt, ok := m.GetBySlug(slug)
	if !ok {
		return GitStatus{}, fmt.Errorf("worktree for slug %q not found", slug)
	}
	return m.git.Status(context.Background(), wt.Path)
}

// Remove removes a worktree and optionally deletes its branch.
func (m *WorktreeManager) Remove(ctx context.Context, slug string, deleteBranch bool) error {
	wt, found := m.GetBySlug(slug)
	if !found {
		return fmt.Errorf("worktree for slug %q not found", slug)
	}

	cmd := exec.CommandContext(ctx, "git", "-C", m.repoDir, "worktree", "remove", "--force", wt.Path)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to remove worktree: %s: %w", strings.TrimSpace(string(output)), err)
	}

	if deleteBranch && wt.Branch != "" {
		del := exec.CommandContext(ctx, "git", "-C", m.repoDir, "branch", "-D", wt.Branch)
		del.Run() // best effort
	}

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{
			Type:     events.EventWorktreeDeleted,
			Worktree: slug,
			Payload: map[string]interface{}{
				"slug":           slug,
				"path":           wt.Path,
				"branch_deleted": deleteBranch,
			},
		})
	}

	return m.Refresh()
}
