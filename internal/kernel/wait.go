// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"context"
	"fmt"
	"time"
)

// Signal is a one-shot, broadcast-on-close notification.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates an unset signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Done returns a channel that closes when Fire is called.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Fire closes the signal, waking every waiter. Safe to call more than
// once; only the first call has effect.
func (s *Signal) Fire() {
	select {
	case <-s.ch:
		// already fired
	default:
		close(s.ch)
	}
}

// WaitForCompletion blocks until sig fires, ctx is cancelled, or timeout
// elapses, whichever comes first, so the wait carries a deadline even when
// ctx has none.
func WaitForCompletion(ctx context.Context, sig *Signal, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-sig.Done():
		return nil
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("wait_for_completion: %w", timeoutCtx.Err())
	}
}
