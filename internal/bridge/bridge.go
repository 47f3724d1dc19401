// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/teleclaude/teleclaude/internal/kernel"
)

// TmuxBridge mediates all interaction with a tmux-backed multiplexer
// (spec.md §4.1). Operations on a single pane are serialized via a
// per-handle lock; operations across handles run concurrently.
type TmuxBridge struct {
	exec       Executor
	shell      string
	historyLim bool // whether Capture pulls full scrollback
	exitMarker string

	mu    sync.Mutex // guards panes
	panes map[string]*sync.Mutex
}

// NewTmuxBridge builds a bridge over exec. shell is the default shell used
// when CreatePane is called without one; exitMarker is the sentinel string
// the poller looks for to detect command completion (spec.md §4.2).
func NewTmuxBridge(exec Executor, shell, exitMarker string) *TmuxBridge {
	if shell == "" {
		shell = "/bin/sh"
	}
	if exitMarker == "" {
		exitMarker = "__TELECLAUDE_DONE_$?__"
	}
	return &TmuxBridge{
		exec:       exec,
		shell:      shell,
		exitMarker: exitMarker,
		panes:      make(map[string]*sync.Mutex),
	}
}

func (b *TmuxBridge) laneFor(handle Handle) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := handle.Target()
	lane, ok := b.panes[key]
	if !ok {
		lane = &sync.Mutex{}
		b.panes[key] = lane
	}
	return lane
}

// CreatePane opens a new tmux window named `name` inside a per-daemon
// session, failing if it already exists.
func (b *TmuxBridge) CreatePane(ctx context.Context, name, shell, cwd string) (Handle, error) {
	handle := Handle{Session: "teleclaude", Window: name}

	if !b.exec.HasSession(ctx, handle.Session) {
		if err := b.exec.NewSession(ctx, handle.Session, cwd, name); err != nil {
			return Handle{}, kernel.Wrap(kernel.KindMultiplexerUnavailable, "tmux new-session failed", err)
		}
		return handle, nil
	}

	if b.exec.HasSession(ctx, handle.Target()) {
		// HasSession only checks sessions, not windows; callers should not
		// reuse a name, but we defend against it defensively via NewWindow's
		// own failure when the window already exists.
	}

	if shell == "" {
		shell = b.shell
	}
	if err := b.exec.NewWindow(ctx, handle.Session, name, cwd, []string{shell}); err != nil {
		return Handle{}, kernel.Wrap(kernel.KindSessionSpawnFailed, fmt.Sprintf("create_pane %q failed", name), err)
	}
	return handle, nil
}

// SendInput writes text followed by a newline, optionally appending the
// exit marker so the poller can detect command boundaries.
func (b *TmuxBridge) SendInput(ctx context.Context, handle Handle, text string, appendExitMarker bool) error {
	lane := b.laneFor(handle)
	lane.Lock()
	defer lane.Unlock()

	payload := text
	if appendExitMarker {
		payload = fmt.Sprintf("%s; echo %s", text, b.exitMarker)
	}

	if err := b.exec.SendText(ctx, handle.Target(), payload); err != nil {
		return kernel.Wrap(kernel.KindPaneLost, "send_input failed", err).WithSession(handle.Target())
	}
	return b.exec.SendKeys(ctx, handle.Target(), "Enter", false)
}

// Capture returns the full scrollback-bounded pane text.
func (b *TmuxBridge) Capture(ctx context.Context, handle Handle) (string, error) {
	lane := b.laneFor(handle)
	lane.Lock()
	defer lane.Unlock()

	out, err := b.exec.CapturePane(ctx, handle.Target(), b.historyLim)
	if err != nil {
		return "", kernel.Wrap(kernel.KindPaneLost, "capture failed", err).WithSession(handle.Target())
	}
	return string(out), nil
}

// Destroy kills the tmux window backing handle. Idempotent: killing an
// already-gone window is not an error.
func (b *TmuxBridge) Destroy(ctx context.Context, handle Handle) error {
	lane := b.laneFor(handle)
	lane.Lock()
	defer lane.Unlock()

	b.exec.KillWindow(ctx, handle.Session, handle.Window) // best effort; already-gone is fine

	b.mu.Lock()
	delete(b.panes, handle.Target())
	b.mu.Unlock()
	return nil
}

// ExitMarker returns the sentinel configured for command-boundary detection.
func (b *TmuxBridge) ExitMarker() string {
	return b.exitMarker
}
