// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"fmt"
	"time"
)

// RunGathering drives a gathering's phase state machine end to end
// (spec.md §4.4 Gathering orchestration): inhale, hold, exhale, close,
// each running cfg.RoundsPerPhase rounds, each round iterating every
// speaker in ordinal order.
func RunGathering(ctx context.Context, r *Relay, cfg Config) error {
	phases := []Phase{PhaseInhale, PhaseHold, PhaseExhale}

	for _, phase := range phases {
		if err := r.AdvancePhase(ctx, phase); err != nil {
			return err
		}
		for round := 1; round <= cfg.RoundsPerPhase; round++ {
			if err := runRound(ctx, r, cfg, phase, round, cfg.RoundsPerPhase); err != nil {
				return err
			}
		}
	}

	if err := r.AdvancePhase(ctx, PhaseClose); err != nil {
		return err
	}
	return runCloseTurn(ctx, r, cfg)
}

// runRound gives every speaker one turn, strictly in ordinal order: the
// talking piece is held by exactly one speaker at a time (spec.md §4.4
// "talking-piece" design; §8 exactly-one-current-speaker invariant), so
// the next speaker's turn-start prompt is only injected once the current
// holder's turn has ended.
func runRound(ctx context.Context, r *Relay, cfg Config, phase Phase, round, totalRounds int) error {
	for _, p := range speakersOf(r) {
		r.setCurrentSpeaker(p.SessionID)
		if err := runSpeakerTurn(ctx, r, cfg, p, round, totalRounds); err != nil {
			return err
		}
		// Dispatch already advances the piece when the speaker's output
		// matched the pass phrase mid-turn; advance it here too so a
		// speaker that exhausts maxBeats without passing doesn't leave
		// every later round stuck suppressing everyone else in its favor.
		r.advanceIfCurrent(p.SessionID)
	}
	return nil
}

func runSpeakerTurn(ctx context.Context, r *Relay, cfg Config, p Participant, round, totalRounds int) error {
	handle := handleFromTarget(p.TerminalHandle)
	if err := r.br.SendInput(ctx, handle, fmt.Sprintf("your turn (round %d/%d)", round, totalRounds), false); err != nil {
		return err
	}

	beat := cfg.BeatInterval
	if beat <= 0 {
		beat = 30 * time.Second
	}
	ticker := time.NewTicker(beat)
	defer ticker.Stop()

	maxBeats := 3
	for n := 1; n <= maxBeats; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n == maxBeats {
				return r.br.SendInput(ctx, handle, "close out your turn", false)
			}
			msg := fmt.Sprintf("beat %d/%d; continue, pivot, or pass", n, maxBeats)
			if err := r.br.SendInput(ctx, handle, msg, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// runCloseTurn injects the harvest prompt into the harvester's pane under
// HarvestTimeout. It returns once the prompt is sent; it does not wait for
// the harvester's output or completion.
func runCloseTurn(ctx context.Context, r *Relay, cfg Config) error {
	harvester := harvesterOf(r)
	if harvester == nil {
		return nil
	}

	timeout := cfg.HarvestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	harvestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	handle := handleFromTarget(harvester.TerminalHandle)
	return r.br.SendInput(harvestCtx, handle, "produce the harvest", false)
}

func speakersOf(r *Relay) []Participant {
	var result []Participant
	for _, p := range r.Participants() {
		if p.Role == ParticipantSpeaker {
			result = append(result, p)
		}
	}
	return result
}

func harvesterOf(r *Relay) *Participant {
	for _, p := range r.Participants() {
		if p.Role == ParticipantHarvester {
			return &p
		}
	}
	return nil
}
