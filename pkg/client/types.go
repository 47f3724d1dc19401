// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"path/filepath"
	"time"
)

// ChatBinding references the adapter + channel/topic a session is bound to.
type ChatBinding struct {
	Adapter string `json:"adapter"`
	Channel string `json:"channel"`
	Topic   string `json:"topic"`
}

// Session is the daemon's record for one live or tombstoned agent session
// (spec.md §3 Session).
type Session struct {
	ID              string       `json:"id"`
	TerminalHandle  string       `json:"terminal_handle"`
	AgentKind       string       `json:"agent_kind"`
	Role            string       `json:"role"`
	ProjectPath     string       `json:"project_path"`
	Subfolder       string       `json:"subfolder,omitempty"`
	ChatBinding     *ChatBinding `json:"chat_binding,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	ClosedAt        *time.Time   `json:"closed_at,omitempty"`
	ParentSessionID string       `json:"parent_session_id,omitempty"`
	DirectPeers     []string     `json:"direct_peers,omitempty"`
}

// AvailabilityRecord is the availability state for one agent kind
// (spec.md §4.6).
type AvailabilityRecord struct {
	Available        bool      `json:"Available"`
	UnavailableUntil time.Time `json:"UnavailableUntil"`
	Reason           string    `json:"Reason"`
}

// RelayParticipant is one member of a relay. Field names mirror
// internal/relay.Participant, which carries no JSON tags of its own.
type RelayParticipant struct {
	SessionID      string `json:"SessionID"`
	TerminalHandle string `json:"TerminalHandle"`
	DisplayName    string `json:"DisplayName"`
	Ordinal        int    `json:"Ordinal"`
	Role           string `json:"Role"`
}

// Relay is a snapshot of a relay's state.
type Relay struct {
	RelayID      string             `json:"relay_id"`
	Mode         string             `json:"mode"`
	Phase        string             `json:"phase"`
	Participants []RelayParticipant `json:"participants"`
}

// Directive is the tagged return value of next_prepare/next_work
// (spec.md §4.7).
type Directive struct {
	Kind string `json:"Kind"`

	ErrorCode string `json:"ErrorCode,omitempty"`
	Message   string `json:"Message,omitempty"`

	Slug        string `json:"Slug,omitempty"`
	ArchivePath string `json:"ArchivePath,omitempty"`

	Command      string `json:"Command,omitempty"`
	Args         string `json:"Args,omitempty"`
	Project      string `json:"Project,omitempty"`
	Agent        string `json:"Agent,omitempty"`
	ThinkingTier string `json:"ThinkingTier,omitempty"`
	Subfolder    string `json:"Subfolder,omitempty"`
	Note         string `json:"Note,omitempty"`
}

// VerifyResult is the response from the todo verify endpoint.
type VerifyResult struct {
	Slug   string `json:"slug"`
	Phase  string `json:"phase"`
	Passed bool   `json:"passed"`
	Report string `json:"report"`
}

// Worktree represents a git worktree backing trees/{slug}.
type Worktree struct {
	Path     string `json:"Path"`
	Branch   string `json:"Branch"`
	Commit   string `json:"Commit"`
	Detached bool   `json:"Detached"`
	IsBare   bool   `json:"IsBare"`
	Dirty    bool   `json:"Dirty"`
	Ahead    int    `json:"Ahead"`
	Behind   int    `json:"Behind"`
}

// Name returns the worktree name, the last component of the path.
func (w Worktree) Name() string {
	return filepath.Base(w.Path)
}

// GitStatus is the live git status of a worktree.
type GitStatus struct {
	Clean     bool     `json:"Clean"`
	Modified  []string `json:"Modified"`
	Added     []string `json:"Added"`
	Deleted   []string `json:"Deleted"`
	Renamed   []string `json:"Renamed"`
	Untracked []string `json:"Untracked"`
}

// Event represents a daemon event from the event log.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Worktree  string                 `json:"worktree"`
	Payload   map[string]interface{} `json:"payload"`
}

// NotifyType represents the type of notification to send.
type NotifyType string

// Notification type constants.
const (
	NotifyDone    NotifyType = "done"
	NotifyBlocked NotifyType = "blocked"
	NotifyError   NotifyType = "error"
)

// NotifyRequest is the request body for sending a notification.
type NotifyRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Type      string `json:"type"`
}

// NotifyResponse is returned after sending a notification.
type NotifyResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}
