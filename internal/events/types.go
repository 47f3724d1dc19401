// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the daemon's event bus.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Worktree  string                 `json:"worktree"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types    []string  // Event types to match (supports wildcards)
	Worktree string    // Filter by worktree
	Since    time.Time // Events after this time
	Until    time.Time // Events before this time
	Limit    int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// SetDefaultWorktree sets the default worktree for events that don't specify one.
	SetDefaultWorktree(worktree string)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Common event types
const (
	// Session events (§3 Session, §4.1-4.3)
	EventSessionSpawned          = "session.spawned"
	EventSessionClosed           = "session.closed"
	EventSessionOutputChanged    = "session.output_changed"
	EventSessionIdle             = "session.idle"
	EventSessionExitedNormally   = "session.exited_normally"
	EventSessionExitedAbnormally = "session.exited_abnormally"

	// Relay events (§4.4)
	EventRelayStarted     = "relay.started"
	EventRelayEnded       = "relay.ended"
	EventRelayPhaseChange = "relay.phase_changed"

	// Worktree events (§6.1)
	EventWorktreeCreated   = "worktree.created"
	EventWorktreeActivated = "worktree.activated"
	EventWorktreeDeleted   = "worktree.deleted"

	// Todo / orchestrator events (§4.7-4.8)
	EventTodoDirective = "todo.directive"
	EventTodoComplete  = "todo.complete"

	// Agent-availability events (§4.6)
	EventAgentUnavailable = "agent.unavailable"
	EventAgentAvailable   = "agent.available"

	// Notification events (signal sessions, §4.8, §7)
	EventNotifyDone    = "notify.done"    // Task completed
	EventNotifyBlocked = "notify.blocked" // Waiting for user input
	EventNotifyError   = "notify.error"   // Something failed
)
