// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeHJSONValue(t *testing.T) {
	assert.Equal(t, `a\\b\"c`, escapeHJSONValue(`a\b"c`))
}

func TestDefaultAgentCommand(t *testing.T) {
	assert.Equal(t, "claude --dangerously-skip-permissions", defaultAgentCommand("claude"))
	assert.Equal(t, "codex", defaultAgentCommand("codex"))
	assert.Equal(t, "gemini", defaultAgentCommand("gemini"))
	assert.Equal(t, "shell", defaultAgentCommand("shell"))
}

func TestGenerateConfigWithNoAgentsFallsBackToShell(t *testing.T) {
	out := generateConfig("demo", 8765, "/tmp/demo", nil)
	assert.Contains(t, out, `name: "demo"`)
	assert.Contains(t, out, `port: 8765`)
	assert.Contains(t, out, `{ kind: "shell", command: "/bin/sh" }`)
}

func TestGenerateConfigListsConfiguredAgents(t *testing.T) {
	agents := []agentPrompt{
		{Kind: "claude", Command: "claude --dangerously-skip-permissions"},
		{Kind: "codex", Command: "codex"},
	}
	out := generateConfig("demo", 8765, "/tmp/demo", agents)
	assert.True(t, strings.Contains(out, `{ kind: "claude", command: "claude --dangerously-skip-permissions" }`))
	assert.True(t, strings.Contains(out, `{ kind: "codex", command: "codex" }`))
}
