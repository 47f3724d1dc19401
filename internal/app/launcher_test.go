// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/kernel"
	"github.com/teleclaude/teleclaude/internal/registry"
	"github.com/teleclaude/teleclaude/internal/todo"
)

type recordedInput struct {
	handle           bridge.Handle
	text             string
	appendExitMarker bool
}

type fakeBridge struct {
	sent []recordedInput
}

func (f *fakeBridge) CreatePane(ctx context.Context, name, shell, cwd string) (bridge.Handle, error) {
	return bridge.Handle{Session: name, Window: "0"}, nil
}

func (f *fakeBridge) SendInput(ctx context.Context, handle bridge.Handle, text string, appendExitMarker bool) error {
	f.sent = append(f.sent, recordedInput{handle: handle, text: text, appendExitMarker: appendExitMarker})
	return nil
}

func (f *fakeBridge) Capture(ctx context.Context, handle bridge.Handle) (string, error) {
	return "", nil
}

func (f *fakeBridge) Destroy(ctx context.Context, handle bridge.Handle) error {
	return nil
}

func (f *fakeBridge) ExitMarker() string {
	return "__DONE__"
}

func TestAgentLauncherLaunchesConfiguredCommand(t *testing.T) {
	br := &fakeBridge{}
	launcher := newAgentLauncher(br, []config.AgentConfig{
		{Kind: "claude", Command: "claude --dangerously-skip-permissions"},
	})

	sess := &registry.Session{ID: "s1", AgentKind: registry.AgentClaude, TerminalHandle: "session-abcd:0"}
	d := todo.Directive{Kind: todo.DirectiveToolCall, Note: "engage as collaborator"}

	require.NoError(t, launcher.Launch(context.Background(), sess, d))
	require.Len(t, br.sent, 2)
	assert.Equal(t, "claude --dangerously-skip-permissions", br.sent[0].text)
	assert.False(t, br.sent[0].appendExitMarker)
	assert.Equal(t, "engage as collaborator", br.sent[1].text)
	assert.True(t, br.sent[1].appendExitMarker)
}

func TestAgentLauncherPrefixesEnv(t *testing.T) {
	br := &fakeBridge{}
	launcher := newAgentLauncher(br, []config.AgentConfig{
		{Kind: "claude", Command: "claude", Env: map[string]string{"B": "2", "A": "1"}},
	})

	sess := &registry.Session{ID: "s1", AgentKind: registry.AgentClaude, TerminalHandle: "session-abcd:0"}
	require.NoError(t, launcher.Launch(context.Background(), sess, todo.Directive{}))

	require.Len(t, br.sent, 1) // no prompt, so no second SendInput
	assert.Equal(t, `export A="1" B="2" && claude`, br.sent[0].text)
}

func TestAgentLauncherErrorsOnUnconfiguredKind(t *testing.T) {
	br := &fakeBridge{}
	launcher := newAgentLauncher(br, nil)

	sess := &registry.Session{ID: "s1", AgentKind: registry.AgentGemini, TerminalHandle: "session-abcd:0"}
	err := launcher.Launch(context.Background(), sess, todo.Directive{})
	require.Error(t, err)
	assert.Equal(t, kernel.KindConfigInvalid, kernel.KindOf(err))
}

func TestAgentLauncherErrorsOnMalformedHandle(t *testing.T) {
	br := &fakeBridge{}
	launcher := newAgentLauncher(br, []config.AgentConfig{{Kind: "shell", Command: "/bin/sh"}})

	sess := &registry.Session{ID: "s1", AgentKind: registry.AgentShell, TerminalHandle: "no-colon-here"}
	err := launcher.Launch(context.Background(), sess, todo.Directive{})
	require.Error(t, err)
	assert.Equal(t, kernel.KindSessionSpawnFailed, kernel.KindOf(err))
}
