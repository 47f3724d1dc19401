// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registry is the single writeable authority over
// {session_id → Session} (spec.md §4.3).
package registry

import (
	"context"
	"time"
)

// AgentKind enumerates the agent back-ends a session can run.
type AgentKind int

const (
	AgentUnknown AgentKind = iota
	AgentClaude
	AgentCodex
	AgentGemini
	AgentShell
)

func (k AgentKind) String() string {
	switch k {
	case AgentClaude:
		return "claude"
	case AgentCodex:
		return "codex"
	case AgentGemini:
		return "gemini"
	case AgentShell:
		return "shell"
	default:
		return "unknown"
	}
}

func (k AgentKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// ParseAgentKind parses a lowercase agent kind string.
func ParseAgentKind(s string) AgentKind {
	switch s {
	case "claude":
		return AgentClaude
	case "codex":
		return AgentCodex
	case "gemini":
		return AgentGemini
	case "shell":
		return AgentShell
	default:
		return AgentUnknown
	}
}

// Role is the dispatched role a session was spawned to fill.
type Role int

const (
	RoleUnknown Role = iota
	RoleArchitect
	RoleBuilder
	RoleReviewer
	RoleFixer
	RoleFinalizer
	RoleHuman
	RolePeer
)

func (r Role) String() string {
	switch r {
	case RoleArchitect:
		return "architect"
	case RoleBuilder:
		return "builder"
	case RoleReviewer:
		return "reviewer"
	case RoleFixer:
		return "fixer"
	case RoleFinalizer:
		return "finalizer"
	case RoleHuman:
		return "human"
	case RolePeer:
		return "peer"
	default:
		return "unknown"
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// ChatBinding references the adapter + channel/topic a session is bound to.
// Immutable after creation (spec.md §3 Session invariants).
type ChatBinding struct {
	Adapter string `json:"adapter"`
	Channel string `json:"channel"`
	Topic   string `json:"topic"`
}

// Session is the registry's record for one live or tombstoned agent session.
type Session struct {
	ID              string       `json:"id"`
	TerminalHandle  string       `json:"terminal_handle"`
	AgentKind       AgentKind    `json:"agent_kind"`
	Role            Role         `json:"role"`
	ProjectPath     string       `json:"project_path"`
	Subfolder       string       `json:"subfolder,omitempty"`
	ChatBinding     *ChatBinding `json:"chat_binding,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	ClosedAt        *time.Time   `json:"closed_at,omitempty"`
	ParentSessionID string       `json:"parent_session_id,omitempty"`
	DirectPeers     []string     `json:"direct_peers,omitempty"`
}

// IsClosed reports whether the session has been tombstoned.
func (s *Session) IsClosed() bool {
	return s.ClosedAt != nil
}

// Spec describes a session to be created.
type Spec struct {
	AgentKind       AgentKind
	Role            Role
	ProjectPath     string
	Subfolder       string
	ChatBinding     *ChatBinding
	ParentSessionID string
}

// Filter restricts List to a subset of sessions.
type Filter struct {
	AgentKind     AgentKind // zero value (AgentUnknown) means "any"
	Role          Role      // zero value means "any"
	IncludeClosed bool
}

// Registry is the operations surface described in spec.md §4.3.
type Registry interface {
	Create(ctx context.Context, spec Spec) (*Session, error)
	Get(id string) (*Session, bool)
	List(filter Filter) []*Session

	// Close tombstones a session. Idempotent: a second call is a no-op
	// that still returns success.
	Close(ctx context.Context, id, reason string) error

	// AddDirectPeer links two sessions symmetrically (spec.md §3 Relay,
	// direct_peers invariant).
	AddDirectPeer(id, peerID string) error
	RemoveDirectPeer(id, peerID string) error

	// Reconcile reconciles persisted live sessions against the
	// multiplexer's actual panes on startup, tombstoning orphans.
	Reconcile(ctx context.Context) error
}
