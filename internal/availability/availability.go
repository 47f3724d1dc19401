// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package availability tracks rate-limit/outage advisories per agent_kind
// and selects fallback candidates for a task type (spec.md §3
// Agent-availability record, §4.6).
package availability

import (
	"context"
	"sync"
	"time"

	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/events"
	"github.com/teleclaude/teleclaude/internal/registry"
)

// Record is the availability state for one agent_kind. Expired records
// become available=true lazily on read, never by a background sweep.
type Record struct {
	Available        bool
	UnavailableUntil time.Time
	Reason           string
}

func (r Record) isExpired(now time.Time) bool {
	return !r.Available && !r.UnavailableUntil.IsZero() && now.After(r.UnavailableUntil)
}

// Candidate is one (agent_kind, thinking_tier) choice from the fallback
// matrix, in priority order.
type Candidate struct {
	AgentKind    registry.AgentKind
	ThinkingTier string
}

// Tracker is the availability table plus the fallback selector.
type Tracker struct {
	mu      sync.Mutex
	records map[registry.AgentKind]Record
	matrix  map[string][]Candidate // task_type -> ordered candidates
	bus     events.EventBus
}

// NewTracker builds a tracker from the configured fallback matrix
// (config.Config.Fallback).
func NewTracker(cfg []config.FallbackRule, bus events.EventBus) *Tracker {
	t := &Tracker{
		records: make(map[registry.AgentKind]Record),
		matrix:  make(map[string][]Candidate),
		bus:     bus,
	}
	for _, rule := range cfg {
		candidates := make([]Candidate, 0, len(rule.Candidates))
		for _, c := range rule.Candidates {
			candidates = append(candidates, Candidate{
				AgentKind:    registry.ParseAgentKind(c.AgentKind),
				ThinkingTier: c.ThinkingTier,
			})
		}
		t.matrix[rule.TaskType] = candidates
	}
	return t
}

// MarkUnavailable records an outage/rate-limit advisory for kind, lasting
// until `until`. Publishes agent.unavailable.
func (t *Tracker) MarkUnavailable(ctx context.Context, kind registry.AgentKind, until time.Time, reason string) {
	t.mu.Lock()
	t.records[kind] = Record{Available: false, UnavailableUntil: until, Reason: reason}
	t.mu.Unlock()

	if t.bus != nil {
		t.bus.Publish(ctx, events.Event{
			Type: events.EventAgentUnavailable,
			Payload: map[string]interface{}{
				"agent_kind":        kind.String(),
				"unavailable_until": until,
				"reason":            reason,
			},
		})
	}
}

// MarkAvailable clears any outage advisory for kind. Publishes
// agent.available.
func (t *Tracker) MarkAvailable(ctx context.Context, kind registry.AgentKind) {
	t.mu.Lock()
	t.records[kind] = Record{Available: true}
	t.mu.Unlock()

	if t.bus != nil {
		t.bus.Publish(ctx, events.Event{
			Type:    events.EventAgentAvailable,
			Payload: map[string]interface{}{"agent_kind": kind.String()},
		})
	}
}

// IsAvailable reports current availability, expiring stale unavailability
// advisories lazily.
func (t *Tracker) IsAvailable(kind registry.AgentKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[kind]
	if !ok {
		return true
	}
	if rec.isExpired(time.Now()) {
		t.records[kind] = Record{Available: true}
		return true
	}
	return rec.Available
}

// Record returns a snapshot of the availability record for kind.
func (t *Tracker) Record(kind registry.AgentKind) Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[kind]
	if !ok {
		return Record{Available: true}
	}
	if rec.isExpired(time.Now()) {
		return Record{Available: true}
	}
	return rec
}

// SelectCandidate returns the first available candidate in the fallback
// matrix's priority order for taskType. If none are currently available,
// it returns the candidate whose unavailable_until is soonest, so the
// orchestrator waits minimally (spec.md §4.6 Selection). Returns false
// only when taskType has no configured candidates at all.
func (t *Tracker) SelectCandidate(taskType string) (Candidate, bool) {
	candidates := t.matrix[taskType]
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	for _, c := range candidates {
		if t.IsAvailable(c.AgentKind) {
			return c, true
		}
	}

	best := candidates[0]
	bestUntil := t.Record(best.AgentKind).UnavailableUntil
	for _, c := range candidates[1:] {
		until := t.Record(c.AgentKind).UnavailableUntil
		if until.Before(bestUntil) {
			best, bestUntil = c, until
		}
	}
	return best, true
}

// Pick adapts SelectCandidate to the todo package's Picker interface,
// returning plain strings instead of a registry.AgentKind.
func (t *Tracker) Pick(taskType string) (agentKind, thinkingTier string, ok bool) {
	cand, ok := t.SelectCandidate(taskType)
	if !ok {
		return "", "", false
	}
	return cand.AgentKind.String(), cand.ThinkingTier, true
}
