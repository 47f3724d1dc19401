// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/events"
	"github.com/teleclaude/teleclaude/internal/kernel"
)

var passPattern = regexp.MustCompile(`(?i)^(I pass|Passing to)\b`)

// Relay is a routing table that fans OutputChanged events from one
// participant to the others (spec.md §4.4).
type Relay struct {
	ID   string
	Mode Mode

	mu           sync.Mutex
	participants []*Participant // ordinal order
	active       bool

	// Gathering-only state.
	phase        Phase
	talkingPiece int // index into participants
	cancel       context.CancelFunc

	br  bridge.Bridge
	bus events.EventBus
}

// Manager tracks all active relays and is the entry point for
// establishing direct peer links and gatherings.
type Manager struct {
	mu     sync.Mutex
	relays map[string]*Relay

	// directLinks dedupes `send --direct` so a second call between the
	// same pair is a no-op (spec.md §6.2 idempotency).
	directLinks map[string]string // sorted "a|b" session-id pair -> relay ID

	br  bridge.Bridge
	bus events.EventBus
	cfg Config
}

// NewManager builds a relay manager.
func NewManager(br bridge.Bridge, bus events.EventBus, cfg Config) *Manager {
	return &Manager{
		relays:      make(map[string]*Relay),
		directLinks: make(map[string]string),
		br:          br,
		bus:         bus,
		cfg:         cfg,
	}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// EstablishDirect creates a one-to-one relay between two participants, or
// returns the existing one if the pair is already linked (idempotent,
// spec.md §6.2: "a second send --direct ... returns success without
// creating a second relay").
func (m *Manager) EstablishDirect(ctx context.Context, a, b Participant) (*Relay, error) {
	key := pairKey(a.SessionID, b.SessionID)

	m.mu.Lock()
	if relayID, ok := m.directLinks[key]; ok {
		if r, ok := m.relays[relayID]; ok {
			m.mu.Unlock()
			return r, nil
		}
	}
	m.mu.Unlock()

	a.Ordinal, b.Ordinal = 0, 1
	r := &Relay{
		ID:           uuid.NewString(),
		Mode:         ModeOneToOne,
		participants: []*Participant{&a, &b},
		active:       true,
		br:           m.br,
		bus:          m.bus,
	}

	m.mu.Lock()
	m.relays[r.ID] = r
	m.directLinks[key] = r.ID
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{
			Type: events.EventRelayStarted,
			Payload: map[string]interface{}{
				"relay_id": r.ID,
				"mode":     r.Mode.String(),
			},
		})
	}
	return r, nil
}

// StartGathering creates a gathering relay with a harvester plus speakers,
// ordered by the order given (ordinal assigned from slice position). The
// relay starts parked in PhaseInhale with nothing driving it; callers run
// it by passing the result to Manager.RunGathering.
func (m *Manager) StartGathering(ctx context.Context, participants []Participant) (*Relay, error) {
	if len(participants) < 2 {
		return nil, kernel.New(kernel.KindSessionSpawnFailed, "gathering requires at least a harvester and one speaker")
	}

	ptrs := make([]*Participant, len(participants))
	harvesters := 0
	for i := range participants {
		p := participants[i]
		p.Ordinal = i
		ptrs[i] = &p
		if p.Role == ParticipantHarvester {
			harvesters++
		}
	}
	if harvesters != 1 {
		return nil, kernel.New(kernel.KindSessionSpawnFailed, fmt.Sprintf("gathering requires exactly one harvester, got %d", harvesters))
	}

	m.mu.Lock()
	for _, p := range ptrs {
		if relayID, busy := m.activeRelayOfLocked(p.SessionID); busy {
			m.mu.Unlock()
			return nil, kernel.New(kernel.KindSessionSpawnFailed,
				fmt.Sprintf("session %s already belongs to active relay %s", p.SessionID, relayID))
		}
	}
	m.mu.Unlock()

	r := &Relay{
		ID:           uuid.NewString(),
		Mode:         ModeGathering,
		participants: ptrs,
		active:       true,
		phase:        PhaseInhale,
		br:           m.br,
		bus:          m.bus,
	}

	m.mu.Lock()
	m.relays[r.ID] = r
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{
			Type:    events.EventRelayStarted,
			Payload: map[string]interface{}{"relay_id": r.ID, "mode": r.Mode.String()},
		})
	}

	return r, nil
}

// RunGathering drives r through its inhale/hold/exhale/close phases in a
// background goroutine (spec.md §4.4). ctx should outlive the HTTP request
// that created the gathering; Manager.End cancels it early if the relay is
// stopped before it finishes on its own.
func (m *Manager) RunGathering(ctx context.Context, r *Relay) {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		if err := RunGathering(runCtx, r, m.cfg); err != nil && runCtx.Err() == nil {
			log.Printf("gathering %s ended with error: %v", r.ID, err)
		}
	}()
}

// activeRelayOfLocked returns the ID of the active relay sessionID already
// belongs to, if any (spec.md §3: a session belongs to at most one active
// relay; §4.4 nested-gathering guard). Callers must hold m.mu.
func (m *Manager) activeRelayOfLocked(sessionID string) (string, bool) {
	for id, r := range m.relays {
		r.mu.Lock()
		active := r.active
		member := r.findLocked(sessionID) != nil
		r.mu.Unlock()
		if active && member {
			return id, true
		}
	}
	return "", false
}

// Get returns a relay by ID.
func (m *Manager) Get(id string) (*Relay, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relays[id]
	return r, ok
}

// End deactivates a relay and removes any direct-link dedup entry pointing
// to it (spec.md §3 Relay lifecycle: destroyed when any required
// participant exits abnormally, or on explicit stop).
func (m *Manager) End(ctx context.Context, id string) error {
	m.mu.Lock()
	r, ok := m.relays[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	r.mu.Lock()
	r.active = false
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	for key, relayID := range m.directLinks {
		if relayID == id {
			delete(m.directLinks, key)
		}
	}
	delete(m.relays, id)
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{
			Type:    events.EventRelayEnded,
			Payload: map[string]interface{}{"relay_id": id},
		})
	}
	return nil
}

// Dispatch handles one OutputChanged delta from sender, fanning it out to
// every other participant in ordinal order (spec.md §4.4 Delivery). In
// gathering mode, only the current talking-piece holder's output is
// fanned out; others are captured but suppressed.
func (r *Relay) Dispatch(ctx context.Context, senderSessionID, delta string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return nil
	}

	sender := r.findLocked(senderSessionID)
	if sender == nil {
		return kernel.New(kernel.KindPaneLost, "dispatch from unknown participant: "+senderSessionID)
	}

	if r.Mode == ModeGathering && r.participants[r.talkingPiece].SessionID != senderSessionID {
		// Captured but suppressed: fold into baseline without fan-out.
		sender.Baseline += delta
		return nil
	}

	attributed := fmt.Sprintf("[%s (%d)]:\n%s", sender.DisplayName, sender.Ordinal, delta)

	ordered := make([]*Participant, len(r.participants))
	copy(ordered, r.participants)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })

	for _, p := range ordered {
		if p.SessionID == senderSessionID {
			continue
		}
		handle := handleFromTarget(p.TerminalHandle)
		if err := r.br.SendInput(ctx, handle, attributed, false); err != nil {
			return err
		}
	}

	// Re-fold into sender's baseline to prevent feedback loops.
	sender.Baseline += delta

	if r.Mode == ModeGathering && passPattern.MatchString(strings.TrimSpace(delta)) {
		r.advanceTalkingPieceLocked()
	}

	return nil
}

func (r *Relay) findLocked(sessionID string) *Participant {
	for _, p := range r.participants {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

func (r *Relay) advanceTalkingPieceLocked() {
	r.talkingPiece = (r.talkingPiece + 1) % len(r.participants)
	for r.participants[r.talkingPiece].Role == ParticipantHarvester {
		r.talkingPiece = (r.talkingPiece + 1) % len(r.participants)
	}
}

// setCurrentSpeaker hands the talking piece to sessionID directly, used by
// RunGathering to open each speaker's turn in ordinal order rather than
// waiting for a pass phrase to arrive from nowhere.
func (r *Relay) setCurrentSpeaker(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.participants {
		if p.SessionID == sessionID {
			r.talkingPiece = i
			return
		}
	}
}

// advanceIfCurrent advances the talking piece only if sessionID still holds
// it, so a turn that already passed mid-turn via Dispatch's pass-phrase
// match isn't advanced a second time at turn end.
func (r *Relay) advanceIfCurrent(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.participants[r.talkingPiece].SessionID == sessionID {
		r.advanceTalkingPieceLocked()
	}
}

// CurrentPhase returns the gathering's current phase (ModeOneToOne relays
// always report PhaseUnknown).
func (r *Relay) CurrentPhase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// AdvancePhase moves a gathering to the next phase and broadcasts a phase
// banner to all participants, including the harvester (spec.md §4.4).
func (r *Relay) AdvancePhase(ctx context.Context, next Phase) error {
	r.mu.Lock()
	r.phase = next
	participants := make([]*Participant, len(r.participants))
	copy(participants, r.participants)
	r.mu.Unlock()

	banner := fmt.Sprintf("--- phase: %s ---", next.String())
	for _, p := range participants {
		if err := r.br.SendInput(ctx, handleFromTarget(p.TerminalHandle), banner, false); err != nil {
			return err
		}
	}
	return nil
}

// Participants returns a snapshot of the relay's participant list in
// ordinal order.
func (r *Relay) Participants() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Participant, len(r.participants))
	for i, p := range r.participants {
		result[i] = *p
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Ordinal < result[j].Ordinal })
	return result
}

func handleFromTarget(target string) bridge.Handle {
	idx := strings.LastIndex(target, ":")
	if idx < 0 {
		return bridge.Handle{Session: target}
	}
	return bridge.Handle{Session: target[:idx], Window: target[idx+1:]}
}
