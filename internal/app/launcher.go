// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/kernel"
	"github.com/teleclaude/teleclaude/internal/registry"
	"github.com/teleclaude/teleclaude/internal/todo"
)

// agentLauncher is the orchestrator.AgentLauncher implementation: it
// resolves the configured shell command for a directive's agent_kind and
// types it, followed by the directive's seed prompt, into the session's
// freshly created pane.
type agentLauncher struct {
	bridge bridge.Bridge
	agents map[string]config.AgentConfig
}

func newAgentLauncher(br bridge.Bridge, agents []config.AgentConfig) *agentLauncher {
	m := make(map[string]config.AgentConfig, len(agents))
	for _, a := range agents {
		m[a.Kind] = a
	}
	return &agentLauncher{bridge: br, agents: m}
}

// Launch implements orchestrator.AgentLauncher.
func (l *agentLauncher) Launch(ctx context.Context, sess *registry.Session, d todo.Directive) error {
	kind := sess.AgentKind.String()
	cfg, ok := l.agents[kind]
	if !ok {
		return kernel.New(kernel.KindConfigInvalid, fmt.Sprintf("no agent configured for kind %q", kind))
	}

	handle, err := parseHandle(sess.TerminalHandle)
	if err != nil {
		return kernel.Wrap(kernel.KindSessionSpawnFailed, "bad terminal handle", err).WithSession(sess.ID)
	}

	command := cfg.GetCommand()
	if len(command) == 0 {
		return kernel.New(kernel.KindConfigInvalid, fmt.Sprintf("agent %q has no command configured", kind))
	}

	launchLine := envPrefix(cfg.Env) + strings.Join(command, " ")
	if err := l.bridge.SendInput(ctx, handle, launchLine, false); err != nil {
		return kernel.Wrap(kernel.KindSessionSpawnFailed, "launch agent command", err).WithSession(sess.ID)
	}

	prompt := d.Note
	if prompt == "" {
		prompt = d.Args
	}
	if prompt != "" {
		if err := l.bridge.SendInput(ctx, handle, prompt, true); err != nil {
			return kernel.Wrap(kernel.KindSessionSpawnFailed, "seed agent prompt", err).WithSession(sess.ID)
		}
	}
	return nil
}

// envPrefix renders an agent's configured environment as a leading
// "export K=V ... && " clause so values reach the launched process
// without bridge.Bridge needing its own env-passing primitive. Keys are
// sorted for a deterministic, diffable session transcript.
func envPrefix(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("export")
	for _, k := range keys {
		sb.WriteString(" " + k + "=" + strconv.Quote(env[k]))
	}
	sb.WriteString(" && ")
	return sb.String()
}

func parseHandle(terminalHandle string) (bridge.Handle, error) {
	session, window, ok := strings.Cut(terminalHandle, ":")
	if !ok {
		return bridge.Handle{}, fmt.Errorf("malformed terminal handle %q", terminalHandle)
	}
	return bridge.Handle{Session: session, Window: window}, nil
}
