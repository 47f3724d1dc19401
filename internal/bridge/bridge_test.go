// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/kernel"
)

// fakeExecutor is an in-memory stand-in for the tmux CLI.
type fakeExecutor struct {
	mu       sync.Mutex
	sessions map[string]bool
	windows  map[string]bool
	panes    map[string]string

	newSessionErr  error
	capturePaneErr error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		sessions: make(map[string]bool),
		windows:  make(map[string]bool),
		panes:    make(map[string]string),
	}
}

func (f *fakeExecutor) HasSession(ctx context.Context, session string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[session]
}

func (f *fakeExecutor) NewSession(ctx context.Context, session, workdir, firstWindowName string) error {
	if f.newSessionErr != nil {
		return f.newSessionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session] = true
	if firstWindowName != "" {
		f.windows[session+":"+firstWindowName] = true
	}
	return nil
}

func (f *fakeExecutor) KillSession(ctx context.Context, session string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, session)
	return nil
}

func (f *fakeExecutor) NewWindow(ctx context.Context, session, window, workdir string, command []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[session+":"+window] = true
	return nil
}

func (f *fakeExecutor) KillWindow(ctx context.Context, session, window string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.windows, session+":"+window)
	delete(f.panes, session+":"+window)
	return nil
}

func (f *fakeExecutor) CapturePane(ctx context.Context, target string, withHistory bool) ([]byte, error) {
	if f.capturePaneErr != nil {
		return nil, f.capturePaneErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return []byte(f.panes[target]), nil
}

func (f *fakeExecutor) SendKeys(ctx context.Context, target string, keys string, literal bool) error {
	return nil
}

func (f *fakeExecutor) SendText(ctx context.Context, target string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panes[target] += text + "\n"
	return nil
}

func TestCreatePaneStartsSessionThenWindows(t *testing.T) {
	exec := newFakeExecutor()
	b := NewTmuxBridge(exec, "/bin/bash", "")

	h1, err := b.CreatePane(context.Background(), "first", "", "")
	require.NoError(t, err)
	assert.Equal(t, "teleclaude", h1.Session)
	assert.Equal(t, "first", h1.Window)

	h2, err := b.CreatePane(context.Background(), "second", "", "")
	require.NoError(t, err)
	assert.Equal(t, "teleclaude:second", h2.Target())
}

func TestCreatePaneFailsWhenMultiplexerUnavailable(t *testing.T) {
	exec := newFakeExecutor()
	exec.newSessionErr = errors.New("no tmux server")
	b := NewTmuxBridge(exec, "", "")

	_, err := b.CreatePane(context.Background(), "first", "", "")
	require.Error(t, err)
	assert.Equal(t, kernel.KindMultiplexerUnavailable, kernel.KindOf(err))
}

func TestSendInputAppendsExitMarkerWhenRequested(t *testing.T) {
	exec := newFakeExecutor()
	b := NewTmuxBridge(exec, "", "MARKER123")
	h, err := b.CreatePane(context.Background(), "w", "", "")
	require.NoError(t, err)

	require.NoError(t, b.SendInput(context.Background(), h, "go test ./...", true))

	captured, err := b.Capture(context.Background(), h)
	require.NoError(t, err)
	assert.Contains(t, captured, "go test ./...")
	assert.Contains(t, captured, "MARKER123")
}

func TestCaptureSurfacesPaneLost(t *testing.T) {
	exec := newFakeExecutor()
	exec.capturePaneErr = errors.New("pane not found")
	b := NewTmuxBridge(exec, "", "")
	h, _ := b.CreatePane(context.Background(), "w", "", "")

	_, err := b.Capture(context.Background(), h)
	require.Error(t, err)
	assert.Equal(t, kernel.KindPaneLost, kernel.KindOf(err))
}

func TestDestroyIsIdempotent(t *testing.T) {
	exec := newFakeExecutor()
	b := NewTmuxBridge(exec, "", "")
	h, _ := b.CreatePane(context.Background(), "w", "", "")

	require.NoError(t, b.Destroy(context.Background(), h))
	require.NoError(t, b.Destroy(context.Background(), h)) // second call is a no-op
}
