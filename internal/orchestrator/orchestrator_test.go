// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/events"
	"github.com/teleclaude/teleclaude/internal/registry"
	"github.com/teleclaude/teleclaude/internal/relay"
	"github.com/teleclaude/teleclaude/internal/todo"
)

// fakeRegistry is a minimal in-memory registry.Registry, handing out
// sequential session IDs and recording Close calls.
type fakeRegistry struct {
	mu     sync.Mutex
	nextID int
	live   map[string]*registry.Session
	closed []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{live: make(map[string]*registry.Session)}
}

func (r *fakeRegistry) Create(ctx context.Context, spec registry.Spec) (*registry.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := fmt.Sprintf("sess-%d", r.nextID)
	sess := &registry.Session{
		ID:             id,
		TerminalHandle: "teleclaude:" + id,
		AgentKind:      spec.AgentKind,
		Role:           spec.Role,
		ProjectPath:    spec.ProjectPath,
		Subfolder:      spec.Subfolder,
	}
	r.live[id] = sess
	return sess, nil
}

func (r *fakeRegistry) Get(id string) (*registry.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.live[id]
	return s, ok
}

func (r *fakeRegistry) List(filter registry.Filter) []*registry.Session { return nil }

func (r *fakeRegistry) Close(ctx context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, id)
	return nil
}

func (r *fakeRegistry) AddDirectPeer(id, peerID string) error    { return nil }
func (r *fakeRegistry) RemoveDirectPeer(id, peerID string) error { return nil }
func (r *fakeRegistry) Reconcile(ctx context.Context) error      { return nil }

// exitingBridge reports the exit marker on the first Capture call after a
// session has been "completed" via complete(), simulating an agent pane
// that finishes its prompt and prints the sentinel.
type exitingBridge struct {
	mu        sync.Mutex
	completed map[string]bool
}

func newExitingBridge() *exitingBridge {
	return &exitingBridge{completed: make(map[string]bool)}
}

func (b *exitingBridge) complete(handle string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completed[handle] = true
}

func (b *exitingBridge) CreatePane(ctx context.Context, name, shell, cwd string) (bridge.Handle, error) {
	return bridge.Handle{Session: "teleclaude", Window: name}, nil
}
func (b *exitingBridge) Destroy(ctx context.Context, handle bridge.Handle) error { return nil }
func (b *exitingBridge) ExitMarker() string                                      { return exitMarkerNeedle }
func (b *exitingBridge) SendInput(ctx context.Context, handle bridge.Handle, text string, appendExitMarker bool) error {
	return nil
}
func (b *exitingBridge) Capture(ctx context.Context, handle bridge.Handle) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed[handle.Target()] {
		return exitMarkerNeedle, nil
	}
	return "", nil
}

// autoCompleteLauncher marks every spawned session as complete the
// instant it is launched, so waitForExit returns on its first poll.
type autoCompleteLauncher struct {
	br *exitingBridge
}

func (l *autoCompleteLauncher) Launch(ctx context.Context, sess *registry.Session, d todo.Directive) error {
	l.br.complete(sess.TerminalHandle)
	return nil
}

func newTestOrchestrator(t *testing.T, reg *fakeRegistry, br *exitingBridge) *Orchestrator {
	t.Helper()
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 10})
	relays := relay.NewManager(br, bus, relay.Config{})
	return New(nil, reg, br, relays, nil, &autoCompleteLauncher{br: br}, bus)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDispatchAndRecipeDefaultClosesSessionOnExit(t *testing.T) {
	reg := newFakeRegistry()
	br := newExitingBridge()
	o := newTestOrchestrator(t, reg, br)
	o.completionTimeout = 5_000_000_000 // 5s, generous for a CI box

	d := todo.Directive{Kind: todo.DirectiveToolCall, Command: "next-build", Args: "alpha", Project: t.TempDir(), Agent: "claude"}
	result := o.dispatchAndRecipe(context.Background(), d)

	assert.NotEqual(t, todo.DirectiveError, result.Kind)
	require.Len(t, reg.closed, 1)
}

func TestRecipeNextReviewApprovePath(t *testing.T) {
	reg := newFakeRegistry()
	br := newExitingBridge()
	o := newTestOrchestrator(t, reg, br)
	o.completionTimeout = 5_000_000_000

	project := t.TempDir()
	writeFile(t, filepath.Join(project, "todos", "alpha", "review-findings.md"),
		"## Critical\nNone.\n\n## Verdict\nAPPROVE\n")

	d := todo.Directive{Kind: todo.DirectiveToolCall, Command: "next-review", Args: "alpha", Project: project, Agent: "claude"}
	result := o.dispatchAndRecipe(context.Background(), d)

	assert.NotEqual(t, todo.DirectiveError, result.Kind)
	require.Len(t, reg.closed, 1, "reviewer session should be closed on approve")
}

func TestRecipeNextFinalizeFailsWithoutArchive(t *testing.T) {
	reg := newFakeRegistry()
	br := newExitingBridge()
	o := newTestOrchestrator(t, reg, br)
	o.completionTimeout = 5_000_000_000

	d := todo.Directive{Kind: todo.DirectiveToolCall, Command: "next-finalize", Args: "alpha", Project: t.TempDir(), Agent: "claude"}
	result := o.dispatchAndRecipe(context.Background(), d)

	require.Equal(t, todo.DirectiveError, result.Kind)
}

func TestRecipeNextFinalizeSucceedsWithArchive(t *testing.T) {
	reg := newFakeRegistry()
	br := newExitingBridge()
	o := newTestOrchestrator(t, reg, br)
	o.completionTimeout = 5_000_000_000

	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, "done", "0001-alpha"), 0o755))

	d := todo.Directive{Kind: todo.DirectiveToolCall, Command: "next-finalize", Args: "alpha", Project: project, Agent: "claude"}
	result := o.dispatchAndRecipe(context.Background(), d)

	assert.NotEqual(t, todo.DirectiveError, result.Kind)
	require.Len(t, reg.closed, 1)
}

func TestDoneDirExists(t *testing.T) {
	dir := t.TempDir()
	_, found := doneDirExists(dir, "alpha")
	assert.False(t, found)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "done", "0003-alpha"), 0o755))
	path, found := doneDirExists(dir, "alpha")
	assert.True(t, found)
	assert.Contains(t, path, "0003-alpha")
}
