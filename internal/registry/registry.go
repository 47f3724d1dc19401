// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gops "github.com/mitchellh/go-ps"

	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/events"
	"github.com/teleclaude/teleclaude/internal/kernel"
)

// Manager is the registry's single writer (spec.md §4.3). Reads take a
// snapshot under the same lock but never block on I/O; writes serialize.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	bridge bridge.Bridge
	bus    events.EventBus
	store  *Store
}

// NewManager builds a registry backed by br for pane existence checks, bus
// for session lifecycle events, and store for crash-recovery persistence.
func NewManager(br bridge.Bridge, bus events.EventBus, store *Store) (*Manager, error) {
	m := &Manager{
		sessions: make(map[string]*Session),
		bridge:   br,
		bus:      bus,
		store:    store,
	}

	loaded, err := store.Load()
	if err != nil {
		return nil, err
	}
	m.sessions = loaded
	return m, nil
}

// Create is the only writer of session_id and terminal_handle; both are
// set atomically before the record becomes visible (spec.md §3 invariants).
func (m *Manager) Create(ctx context.Context, spec Spec) (*Session, error) {
	handle, err := m.bridge.CreatePane(ctx, "session-"+uuid.NewString()[:8], "", spec.ProjectPath)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:              uuid.NewString(),
		TerminalHandle:  handle.Target(),
		AgentKind:       spec.AgentKind,
		Role:            spec.Role,
		ProjectPath:     spec.ProjectPath,
		Subfolder:       spec.Subfolder,
		ChatBinding:     spec.ChatBinding,
		CreatedAt:       time.Now(),
		ParentSessionID: spec.ParentSessionID,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.Save(snapshot); err != nil {
		return sess, err // session is live even if the persistence write failed
	}

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{
			Type: events.EventSessionSpawned,
			Payload: map[string]interface{}{
				"session_id": sess.ID,
				"agent_kind": sess.AgentKind.String(),
				"role":       sess.Role.String(),
			},
		})
	}

	return sess, nil
}

// Get returns the session for id, if any (tombstoned or live).
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// List returns sessions matching filter.
func (m *Manager) List(filter Filter) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		if sess.IsClosed() && !filter.IncludeClosed {
			continue
		}
		if filter.AgentKind != AgentUnknown && sess.AgentKind != filter.AgentKind {
			continue
		}
		if filter.Role != RoleUnknown && sess.Role != filter.Role {
			continue
		}
		result = append(result, sess)
	}
	return result
}

// Close tombstones a session; its terminal_handle is released to the
// bridge after Close returns. Idempotent.
func (m *Manager) Close(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return kernel.New(kernel.KindPaneLost, "session not found: "+id)
	}
	if sess.IsClosed() {
		m.mu.Unlock()
		return nil // idempotent
	}
	now := time.Now()
	sess.ClosedAt = &now
	handle := sess.TerminalHandle
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.Save(snapshot); err != nil {
		return err
	}

	h := bridge.Handle{Session: "teleclaude"}
	if idx := lastColon(handle); idx >= 0 {
		h.Session, h.Window = handle[:idx], handle[idx+1:]
	}
	if err := m.bridge.Destroy(ctx, h); err != nil {
		return err
	}

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{
			Type: events.EventSessionClosed,
			Payload: map[string]interface{}{
				"session_id": id,
				"reason":     reason,
			},
		})
	}
	return nil
}

// AddDirectPeer links two sessions symmetrically.
func (m *Manager) AddDirectPeer(id, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.sessions[id]
	if !ok {
		return kernel.New(kernel.KindPaneLost, "session not found: "+id)
	}
	b, ok := m.sessions[peerID]
	if !ok {
		return kernel.New(kernel.KindPaneLost, "session not found: "+peerID)
	}

	a.DirectPeers = addUnique(a.DirectPeers, peerID)
	b.DirectPeers = addUnique(b.DirectPeers, id)
	return m.store.Save(m.snapshotLocked())
}

// RemoveDirectPeer unlinks two sessions symmetrically.
func (m *Manager) RemoveDirectPeer(id, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.sessions[id]; ok {
		a.DirectPeers = removeValue(a.DirectPeers, peerID)
	}
	if b, ok := m.sessions[peerID]; ok {
		b.DirectPeers = removeValue(b.DirectPeers, id)
	}
	return m.store.Save(m.snapshotLocked())
}

// Reconcile reconciles persisted live sessions against the multiplexer's
// actual panes, tombstoning orphans (spec.md §4.3, §6.4 on
// SIGHUP-equivalent reload). A session whose pane cannot be captured is an
// orphan. The OS process table is listed via go-ps, but no session is
// checked against it.
func (m *Manager) Reconcile(ctx context.Context) error {
	procs, _ := gops.Processes() // best effort; absence doesn't block tmux-backed reconciliation
	pids := make(map[int]bool, len(procs))
	for _, p := range procs {
		pids[p.Pid()] = true
	}

	m.mu.Lock()
	var orphaned []*Session
	for _, sess := range m.sessions {
		if sess.IsClosed() {
			continue
		}
		if _, err := m.bridge.Capture(ctx, handleFromTarget(sess.TerminalHandle)); err != nil {
			orphaned = append(orphaned, sess)
		}
	}
	now := time.Now()
	for _, sess := range orphaned {
		sess.ClosedAt = &now
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.store.Save(snapshot); err != nil {
		return err
	}

	if m.bus != nil {
		for _, sess := range orphaned {
			m.bus.Publish(ctx, events.Event{
				Type: events.EventSessionClosed,
				Payload: map[string]interface{}{
					"session_id": sess.ID,
					"reason":     "reconcile_orphan",
				},
			})
		}
	}
	return nil
}

// snapshotLocked must be called with m.mu held.
func (m *Manager) snapshotLocked() map[string]*Session {
	snapshot := make(map[string]*Session, len(m.sessions))
	for id, sess := range m.sessions {
		copySess := *sess
		snapshot[id] = &copySess
	}
	return snapshot
}

func handleFromTarget(target string) bridge.Handle {
	h := bridge.Handle{Session: "teleclaude"}
	if idx := lastColon(target); idx >= 0 {
		h.Session, h.Window = target[:idx], target[idx+1:]
	}
	return h
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

func addUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func removeValue(list []string, v string) []string {
	result := list[:0]
	for _, existing := range list {
		if existing != v {
			result = append(result, existing)
		}
	}
	return result
}
