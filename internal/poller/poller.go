// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"strings"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/kernel"
)

// Config tunes the sampling loop (spec.md §4.2 defaults).
type Config struct {
	PollInterval  time.Duration // default 500ms
	IdleThreshold time.Duration // default 5s
	ExitMarker    string
}

// DefaultConfig returns the spec-default tunables.
func DefaultConfig() Config {
	return Config{
		PollInterval:  500 * time.Millisecond,
		IdleThreshold: 5 * time.Second,
	}
}

// Poller samples one pane and emits a totally-ordered event sequence on
// its output channel until the handle exits or ctx is cancelled.
type Poller struct {
	br     bridge.Bridge
	handle bridge.Handle
	cfg    Config
}

// New creates a poller for handle.
func New(br bridge.Bridge, handle bridge.Handle, cfg Config) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = 5 * time.Second
	}
	return &Poller{br: br, handle: handle, cfg: cfg}
}

// Run starts the sampling loop and returns a channel of events. The
// channel closes after an Exited* event or when ctx is cancelled, without
// leaking the background goroutine (spec.md §5 Cancellation).
func (p *Poller) Run(ctx context.Context) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		var baseline string
		var idleSince time.Time
		idleSamples := 0
		idleArmed := false
		ticker := time.NewTicker(p.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			text, err := p.br.Capture(ctx, p.handle)
			if err != nil {
				if kernel.KindOf(err) == kernel.KindPaneLost {
					select {
					case out <- Event{Kind: EventExitedAbnormally, Reason: "pane_lost"}:
					case <-ctx.Done():
					}
					return
				}
				continue // transient capture failure; try again next tick
			}

			if p.cfg.ExitMarker != "" && strings.Contains(text, p.cfg.ExitMarker) {
				select {
				case out <- Event{Kind: EventExitedNormally, ExitMarkerSeen: true}:
				case <-ctx.Done():
				}
				return
			}

			delta := computeDelta(baseline, text)
			now := time.Now()
			if delta != "" {
				baseline = text
				idleSamples = 0
				idleArmed = false
				select {
				case out <- Event{Kind: EventOutputChanged, TextDelta: delta, FirstSeenAt: now, StableSince: now}:
				case <-ctx.Done():
					return
				}
				continue
			}

			idleSamples++
			if idleSamples == 1 {
				idleSince = now
			}
			sampledDuration := time.Duration(idleSamples) * p.cfg.PollInterval
			if sampledDuration >= p.cfg.IdleThreshold && !idleArmed {
				idleArmed = true
				select {
				case out <- Event{Kind: EventIdleDetected, IdleSince: idleSince}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// computeDelta returns the new text appended since baseline. The suffix is
// assembled in a pooled buffer and copied out into a new string, so each
// call with a non-empty delta still allocates that string.
func computeDelta(baseline, newText string) string {
	if baseline == "" {
		return newText
	}
	if !strings.HasPrefix(newText, baseline) {
		// Pane was cleared or scrolled past our baseline; treat the whole
		// capture as new rather than lose data.
		return newText
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.WriteString(newText[len(baseline):])
	return buf.String()
}
