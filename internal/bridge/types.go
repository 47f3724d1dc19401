// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bridge is the exclusive mediator for all interaction with the
// terminal multiplexer (spec.md §4.1). Every pane read or write in the
// daemon goes through a Bridge; nothing else shells out to tmux.
package bridge

import "context"

// Handle identifies one multiplexer pane. The zero value is never valid.
type Handle struct {
	Session string
	Window  string
}

// Target returns the tmux target-pane string ("session:window").
func (h Handle) Target() string {
	return h.Session + ":" + h.Window
}

func (h Handle) String() string {
	return h.Target()
}

// Executor is the low-level multiplexer command surface. RealTmuxExecutor
// is the production implementation; tests substitute a fake.
type Executor interface {
	HasSession(ctx context.Context, session string) bool
	NewSession(ctx context.Context, session, workdir, firstWindowName string) error
	KillSession(ctx context.Context, session string) error
	NewWindow(ctx context.Context, session, window, workdir string, command []string) error
	KillWindow(ctx context.Context, session, window string) error
	CapturePane(ctx context.Context, target string, withHistory bool) ([]byte, error)
	SendKeys(ctx context.Context, target string, keys string, literal bool) error
	SendText(ctx context.Context, target string, text string) error
}

// Bridge is the public surface described in spec.md §4.1.
type Bridge interface {
	// CreatePane opens a new pane under name. Fails if name already exists.
	CreatePane(ctx context.Context, name, shell, cwd string) (Handle, error)

	// SendInput writes text followed by a newline. If appendExitMarker is
	// set, it also writes a sentinel echoing a known string after the
	// command, used by the poller to detect command boundaries.
	SendInput(ctx context.Context, handle Handle, text string, appendExitMarker bool) error

	// Capture returns the full scrollback-bounded pane text.
	Capture(ctx context.Context, handle Handle) (string, error)

	// Destroy tears down a pane. Idempotent.
	Destroy(ctx context.Context, handle Handle) error

	// ExitMarker returns the sentinel SendInput appends when
	// appendExitMarker is set, so a poller.Config can be built to detect
	// the same boundary this bridge actually writes.
	ExitMarker() string
}
