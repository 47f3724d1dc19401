// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/events"
)

// fakeBridge is an in-memory stand-in for bridge.Bridge.
type fakeBridge struct {
	panes map[string]string
	lost  map[string]bool
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{panes: make(map[string]string), lost: make(map[string]bool)}
}

func (b *fakeBridge) CreatePane(ctx context.Context, name, shell, cwd string) (bridge.Handle, error) {
	h := bridge.Handle{Session: "teleclaude", Window: name}
	b.panes[h.Target()] = ""
	return h, nil
}

func (b *fakeBridge) SendInput(ctx context.Context, handle bridge.Handle, text string, appendExitMarker bool) error {
	b.panes[handle.Target()] += text
	return nil
}

func (b *fakeBridge) Capture(ctx context.Context, handle bridge.Handle) (string, error) {
	if b.lost[handle.Target()] {
		return "", assertErr
	}
	return b.panes[handle.Target()], nil
}

func (b *fakeBridge) Destroy(ctx context.Context, handle bridge.Handle) error {
	delete(b.panes, handle.Target())
	return nil
}

func (b *fakeBridge) ExitMarker() string { return "__TELECLAUDE_DONE_$?__" }

var assertErr = errPaneNotFound{}

type errPaneNotFound struct{}

func (errPaneNotFound) Error() string { return "pane not found" }

func newTestManager(t *testing.T) (*Manager, *fakeBridge) {
	t.Helper()
	br := newFakeBridge()
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 100})
	store := NewStore(filepath.Join(t.TempDir(), "sessions.json"))
	mgr, err := NewManager(br, bus, store)
	require.NoError(t, err)
	return mgr, br
}

func TestCreateSetsIDAndHandleAtomically(t *testing.T) {
	mgr, _ := newTestManager(t)

	sess, err := mgr.Create(context.Background(), Spec{AgentKind: AgentClaude, Role: RoleBuilder, ProjectPath: "/repo"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.TerminalHandle)

	got, ok := mgr.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
	assert.False(t, got.IsClosed())
}

func TestCloseIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess, err := mgr.Create(context.Background(), Spec{AgentKind: AgentShell, Role: RoleHuman, ProjectPath: "/repo"})
	require.NoError(t, err)

	require.NoError(t, mgr.Close(context.Background(), sess.ID, "done"))
	require.NoError(t, mgr.Close(context.Background(), sess.ID, "done")) // no-op, still succeeds

	got, ok := mgr.Get(sess.ID)
	require.True(t, ok)
	assert.True(t, got.IsClosed())
}

func TestAddDirectPeerIsSymmetric(t *testing.T) {
	mgr, _ := newTestManager(t)
	a, err := mgr.Create(context.Background(), Spec{AgentKind: AgentClaude, Role: RoleReviewer, ProjectPath: "/repo"})
	require.NoError(t, err)
	b, err := mgr.Create(context.Background(), Spec{AgentKind: AgentCodex, Role: RoleFixer, ProjectPath: "/repo"})
	require.NoError(t, err)

	require.NoError(t, mgr.AddDirectPeer(a.ID, b.ID))

	gotA, _ := mgr.Get(a.ID)
	gotB, _ := mgr.Get(b.ID)
	assert.Contains(t, gotA.DirectPeers, b.ID)
	assert.Contains(t, gotB.DirectPeers, a.ID)
}

func TestListFiltersClosedSessionsByDefault(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess, err := mgr.Create(context.Background(), Spec{AgentKind: AgentClaude, Role: RoleBuilder, ProjectPath: "/repo"})
	require.NoError(t, err)
	require.NoError(t, mgr.Close(context.Background(), sess.ID, "done"))

	assert.Empty(t, mgr.List(Filter{}))
	assert.Len(t, mgr.List(Filter{IncludeClosed: true}), 1)
}

func TestReconcileTombstonesOrphanedSessions(t *testing.T) {
	mgr, br := newTestManager(t)
	sess, err := mgr.Create(context.Background(), Spec{AgentKind: AgentClaude, Role: RoleBuilder, ProjectPath: "/repo"})
	require.NoError(t, err)

	br.lost[sess.TerminalHandle] = true
	require.NoError(t, mgr.Reconcile(context.Background()))

	got, ok := mgr.Get(sess.ID)
	require.True(t, ok)
	assert.True(t, got.IsClosed())
}
