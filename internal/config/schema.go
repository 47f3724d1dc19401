// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading and template expansion
// for the TeleClaude daemon.
package config

import (
	"strings"
	"time"
)

// Config is the root configuration structure for the daemon.
type Config struct {
	Version    string           `json:"version"`
	Project    ProjectConfig    `json:"project"`
	Server     ServerConfig     `json:"server"`
	Worktree   WorktreeConfig   `json:"worktree"`
	Agents     []AgentConfig    `json:"agents"`
	Fallback   []FallbackRule   `json:"fallback"`
	Adapters   []AdapterConfig  `json:"adapters"`
	Bridge     BridgeConfig     `json:"bridge"`
	Poller     PollerConfig     `json:"poller"`
	Relay      RelayConfig      `json:"relay"`
	Todo       TodoConfig       `json:"todo"`
	Events     EventsConfig     `json:"events"`
	Federation FederationConfig `json:"federation"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name string `json:"name"`
	Root string `json:"root"`
}

// ServerConfig configures the daemon control-surface HTTP server (§6.2).
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`
}

// WorktreeConfig configures the git worktree manager backing trees/{slug}.
type WorktreeConfig struct {
	RepoDir  string       `json:"repo_dir"`
	TreesDir string       `json:"trees_dir"` // defaults to "trees" under RepoDir
	OnCreate []HookConfig `json:"on_create"` // run once, in order, right after a slug's worktree is created
}

// HookConfig defines a lifecycle hook command run against a freshly
// created worktree (e.g. installing dependencies before an agent starts
// working in trees/{slug}).
type HookConfig struct {
	Name    string   `json:"name"`
	Command []string `json:"command"`
	Timeout string   `json:"timeout"`
}

// AgentConfig defines how to launch one agent kind (claude/codex/gemini/shell).
type AgentConfig struct {
	Kind    string            `json:"kind"`    // claude, codex, gemini, shell
	Command interface{}       `json:"command"` // string or []string
	Env     map[string]string `json:"env"`
}

// FallbackRule is one (task_type -> ordered candidate list) entry of the
// fallback matrix described in spec.md §4.6.
type FallbackRule struct {
	TaskType   string              `json:"task_type"` // prepare, build, review, fix, commit, finalize
	Candidates []FallbackCandidate `json:"candidates"`
}

// FallbackCandidate is one (agent_kind, thinking_tier) pair in priority order.
type FallbackCandidate struct {
	AgentKind    string `json:"agent_kind"`
	ThinkingTier string `json:"thinking_tier"` // fast, medium, slow
}

// AdapterConfig binds a chat adapter (out-of-scope internals; contract only).
type AdapterConfig struct {
	Name             string `json:"name"`
	MaxMessageLength int    `json:"max_message_length"`
	PeerPollInterval string `json:"peer_poll_interval"`
}

// BridgeConfig configures the terminal multiplexer bridge.
type BridgeConfig struct {
	Backend      string `json:"backend"` // "tmux"
	Shell        string `json:"shell"`
	HistoryLimit int    `json:"history_limit"`
	ExitMarker   string `json:"exit_marker"`
}

// PollerConfig configures the output-poller sampling loop.
type PollerConfig struct {
	PollInterval  string `json:"poll_interval"`  // default 500ms
	IdleThreshold string `json:"idle_threshold"` // default 5s
}

// RelayConfig configures gathering timing.
type RelayConfig struct {
	BeatInterval   string `json:"beat_interval"`
	RoundsPerPhase int    `json:"rounds_per_phase"`
	HarvestTimeout string `json:"harvest_timeout"`
}

// TodoConfig configures the state-machine's tunables.
type TodoConfig struct {
	MaxReviewRounds int    `json:"max_review_rounds"` // default 3
	RoadmapPath     string `json:"roadmap_path"`      // default todos/roadmap.md
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	History HistoryConfig `json:"history"`
}

// HistoryConfig configures event history retention.
type HistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// FederationConfig configures the optional computer-registry heartbeat.
type FederationConfig struct {
	Enabled           bool   `json:"enabled"`
	HeartbeatInterval string `json:"heartbeat_interval"` // default 30s
	StaleThreshold    string `json:"stale_threshold"`    // default 60s
	Channel           string `json:"channel"`
}

// TemplateContext provides data for template expansion.
type TemplateContext struct {
	Worktree WorktreeTemplateData
	Project  ProjectTemplateData
	Agent    *AgentTemplateData
}

// WorktreeTemplateData provides worktree data for templates.
type WorktreeTemplateData struct {
	Root   string
	Name   string
	Branch string
}

// ProjectTemplateData provides project data for templates.
type ProjectTemplateData struct {
	Root string
	Name string
}

// AgentTemplateData provides agent-specific data for templates.
type AgentTemplateData struct {
	Kind string
}

// ParseDuration parses a duration string, returning a default if empty or invalid.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// GetCommand returns the agent's launch command as a slice of strings.
func (a *AgentConfig) GetCommand() []string {
	switch cmd := a.Command.(type) {
	case string:
		return splitCommand(cmd)
	case []interface{}:
		result := make([]string, 0, len(cmd))
		for _, v := range cmd {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		if len(result) == 0 {
			return nil
		}
		return result
	case []string:
		return cmd
	default:
		return nil
	}
}

// splitCommand splits a command string on whitespace, respecting quoted strings.
func splitCommand(cmd string) []string {
	var result []string
	var current strings.Builder
	var inQuote rune
	var escape bool

	for _, r := range cmd {
		if escape {
			current.WriteRune(r)
			escape = false
			continue
		}

		if r == '\\' && inQuote != '\'' {
			escape = true
			continue
		}

		if inQuote != 0 {
			if r == inQuote {
				inQuote = 0
			} else {
				current.WriteRune(r)
			}
			continue
		}

		if r == '"' || r == '\'' {
			inQuote = r
			continue
		}

		if r == ' ' || r == '\t' {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			continue
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
