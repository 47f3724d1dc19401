// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/creack/pty"

	"github.com/teleclaude/teleclaude/internal/kernel"
)

// PTYBridge is a fallback Bridge for hosts without tmux: each pane is a
// bare PTY-backed process with an in-memory scrollback buffer. It
// satisfies the same contract as TmuxBridge (spec.md §4.1) but panes do
// not survive daemon restart.
type PTYBridge struct {
	shell      string
	exitMarker string

	mu    sync.Mutex
	panes map[string]*ptyPane
}

type ptyPane struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	file   *os.File
	buf    bytes.Buffer
	closed bool
}

// NewPTYBridge builds a PTY-backed bridge.
func NewPTYBridge(shell, exitMarker string) *PTYBridge {
	if shell == "" {
		shell = "/bin/sh"
	}
	if exitMarker == "" {
		exitMarker = "__TELECLAUDE_DONE_$?__"
	}
	return &PTYBridge{shell: shell, exitMarker: exitMarker, panes: make(map[string]*ptyPane)}
}

func (b *PTYBridge) CreatePane(ctx context.Context, name, shell, cwd string) (Handle, error) {
	handle := Handle{Session: "pty", Window: name}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.panes[handle.Target()]; exists {
		return Handle{}, kernel.New(kernel.KindSessionSpawnFailed, "pane already exists: "+name)
	}

	if shell == "" {
		shell = b.shell
	}
	cmd := exec.Command(shell)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	f, err := pty.Start(cmd)
	if err != nil {
		return Handle{}, kernel.Wrap(kernel.KindMultiplexerUnavailable, "pty start failed", err)
	}

	pane := &ptyPane{cmd: cmd, file: f}
	b.panes[handle.Target()] = pane

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				pane.mu.Lock()
				pane.buf.Write(buf[:n])
				pane.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	return handle, nil
}

func (b *PTYBridge) get(handle Handle) (*ptyPane, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pane, ok := b.panes[handle.Target()]
	if !ok {
		return nil, kernel.New(kernel.KindPaneLost, "pane not found: "+handle.Target())
	}
	return pane, nil
}

func (b *PTYBridge) SendInput(ctx context.Context, handle Handle, text string, appendExitMarker bool) error {
	pane, err := b.get(handle)
	if err != nil {
		return err
	}
	payload := text
	if appendExitMarker {
		payload = text + "; echo " + b.exitMarker
	}
	pane.mu.Lock()
	defer pane.mu.Unlock()
	if pane.closed {
		return kernel.New(kernel.KindPaneLost, "pane closed: "+handle.Target())
	}
	_, err = pane.file.WriteString(payload + "\n")
	return err
}

func (b *PTYBridge) Capture(ctx context.Context, handle Handle) (string, error) {
	pane, err := b.get(handle)
	if err != nil {
		return "", err
	}
	pane.mu.Lock()
	defer pane.mu.Unlock()
	return strings.ToValidUTF8(pane.buf.String(), ""), nil
}

func (b *PTYBridge) Destroy(ctx context.Context, handle Handle) error {
	b.mu.Lock()
	pane, ok := b.panes[handle.Target()]
	delete(b.panes, handle.Target())
	b.mu.Unlock()
	if !ok {
		return nil // idempotent
	}

	pane.mu.Lock()
	pane.closed = true
	pane.mu.Unlock()

	pane.file.Close()
	if pane.cmd.Process != nil {
		pane.cmd.Process.Kill()
		pane.cmd.Wait()
	}
	return nil
}

// ExitMarker returns the sentinel configured for command-boundary detection.
func (b *PTYBridge) ExitMarker() string {
	return b.exitMarker
}
