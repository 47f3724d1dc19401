// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// RealTmuxExecutor executes real tmux commands.
type RealTmuxExecutor struct{}

// NewRealTmuxExecutor creates a new tmux executor.
func NewRealTmuxExecutor() *RealTmuxExecutor {
	return &RealTmuxExecutor{}
}

// HasSession checks if a session exists.
func (e *RealTmuxExecutor) HasSession(ctx context.Context, session string) bool {
	cmd := exec.CommandContext(ctx, "tmux", "has-session", "-t", session)
	return cmd.Run() == nil
}

// NewSession creates a new tmux session with an optional first window name.
func (e *RealTmuxExecutor) NewSession(ctx context.Context, session, workdir, firstWindowName string) error {
	args := []string{"new-session", "-d", "-s", session}
	if firstWindowName != "" {
		args = append(args, "-n", firstWindowName)
	}
	if workdir != "" {
		args = append(args, "-c", workdir)
	}

	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Env = filterTMUXEnv(os.Environ())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tmux new-session failed: %s: %w", stderr.String(), err)
	}
	return nil
}

// KillSession kills a tmux session.
func (e *RealTmuxExecutor) KillSession(ctx context.Context, session string) error {
	cmd := exec.CommandContext(ctx, "tmux", "kill-session", "-t", session)
	return cmd.Run()
}

// NewWindow creates a new window in a session.
func (e *RealTmuxExecutor) NewWindow(ctx context.Context, session, window, workdir string, command []string) error {
	args := []string{"new-window", "-t", session, "-n", window}
	if workdir != "" {
		args = append(args, "-c", workdir)
	}
	if len(command) > 0 {
		args = append(args, command...)
	}

	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Env = filterTMUXEnv(os.Environ())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tmux new-window failed: %s: %w", stderr.String(), err)
	}
	return nil
}

// KillWindow kills a window in a session.
func (e *RealTmuxExecutor) KillWindow(ctx context.Context, session, window string) error {
	target := fmt.Sprintf("%s:%s", session, window)
	cmd := exec.CommandContext(ctx, "tmux", "kill-window", "-t", target)
	return cmd.Run()
}

// CapturePane captures the pane content.
func (e *RealTmuxExecutor) CapturePane(ctx context.Context, target string, withHistory bool) ([]byte, error) {
	args := []string{"capture-pane", "-t", target, "-p", "-e"}
	if withHistory {
		args = append(args, "-S", "-")
	}

	cmd := exec.CommandContext(ctx, "tmux", args...)
	return cmd.Output()
}

// SendKeys sends keys to a pane.
func (e *RealTmuxExecutor) SendKeys(ctx context.Context, target string, keys string, literal bool) error {
	args := []string{"send-keys", "-t", target}
	if literal {
		args = append(args, "-l")
	}
	args = append(args, keys)

	cmd := exec.CommandContext(ctx, "tmux", args...)
	return cmd.Run()
}

// SendText sends text via paste-buffer (handles special characters).
func (e *RealTmuxExecutor) SendText(ctx context.Context, target string, text string) error {
	loadCmd := exec.CommandContext(ctx, "tmux", "load-buffer", "-")
	loadCmd.Stdin = strings.NewReader(text)
	if err := loadCmd.Run(); err != nil {
		return err
	}

	pasteCmd := exec.CommandContext(ctx, "tmux", "paste-buffer", "-d", "-t", target)
	return pasteCmd.Run()
}

// filterTMUXEnv strips the TMUX variable so nested sessions don't confuse
// the client into thinking it is already inside the target session.
func filterTMUXEnv(env []string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "TMUX=") {
			result = append(result, e)
		}
	}
	return result
}
