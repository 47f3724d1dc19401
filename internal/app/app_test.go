// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `{
	project: { name: test-project, root: . }
	server: { host: 127.0.0.1, port: 0 }
	worktree: { repo_dir: . }
	agents: [
		{ kind: claude, command: "claude --dangerously-skip-permissions" }
		{ kind: shell, command: "/bin/sh" }
	]
	fallback: [
		{ task_type: prepare, candidates: [ { agent_kind: claude, thinking_tier: slow } ] }
	]
	bridge: { backend: tmux, shell: /bin/bash, exit_marker: "__DONE__" }
	todo: { max_review_rounds: 3 }
}`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "teleclaude.hjson")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func TestNewLoadsConfig(t *testing.T) {
	path := writeTestConfig(t)

	a, err := New(Options{ConfigPath: path, Version: "test"})
	require.NoError(t, err)
	assert.Equal(t, "test-project", a.Config().Project.Name)
	assert.NotNil(t, a.eventBus)
}

func TestInitializeWiresAllManagers(t *testing.T) {
	path := writeTestConfig(t)

	a, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))

	assert.NotNil(t, a.worktreeManager)
	assert.NotNil(t, a.bridge)
	assert.NotNil(t, a.registry)
	assert.NotNil(t, a.availability)
	assert.NotNil(t, a.relays)
	assert.NotNil(t, a.todoEngine)
	assert.NotNil(t, a.orchestrator)
	assert.NotNil(t, a.apiServer)
}

func TestInitializeRejectsUnknownBridgeBackend(t *testing.T) {
	path := writeTestConfig(t)

	a, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	a.config.Bridge.Backend = "carrier-pigeon"

	err = a.Initialize(context.Background())
	assert.Error(t, err)
}

func TestShutdownIsIdempotentWithoutStart(t *testing.T) {
	path := writeTestConfig(t)

	a, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, a.Shutdown(ctx))
	assert.NoError(t, a.Shutdown(ctx))
}

func TestReloadAppliesNewConfig(t *testing.T) {
	path := writeTestConfig(t)

	a, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(testConfig, "test-project", "renamed-project", 1)), 0o644))

	a.reload(context.Background())
	assert.Equal(t, "renamed-project", a.Config().Project.Name)
}

func TestReloadKeepsPreviousConfigOnError(t *testing.T) {
	path := writeTestConfig(t)

	a, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))

	require.NoError(t, os.Remove(path))

	a.reload(context.Background())
	assert.Equal(t, "test-project", a.Config().Project.Name)
}

func TestStopClosesDoneChannel(t *testing.T) {
	path := writeTestConfig(t)

	a, err := New(Options{ConfigPath: path})
	require.NoError(t, err)

	a.Stop()
	select {
	case <-a.done:
	default:
		t.Fatal("expected done channel to be closed")
	}
	// Calling Stop twice must not panic.
	a.Stop()
}
