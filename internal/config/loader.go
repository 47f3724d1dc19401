// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the daemon configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// FindConfig searches for a config file in the current directory.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"teleclaude.hjson",
		"teleclaude.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for teleclaude.hjson, teleclaude.json)")
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	if cfg.Bridge.Backend == "" {
		cfg.Bridge.Backend = "tmux"
	}
	if cfg.Bridge.HistoryLimit == 0 {
		cfg.Bridge.HistoryLimit = 50000
	}
	if cfg.Bridge.Shell == "" {
		cfg.Bridge.Shell = "/bin/sh"
	}
	if cfg.Bridge.ExitMarker == "" {
		cfg.Bridge.ExitMarker = "__TELECLAUDE_DONE_$?__"
	}

	if cfg.Poller.PollInterval == "" {
		cfg.Poller.PollInterval = "500ms"
	}
	if cfg.Poller.IdleThreshold == "" {
		cfg.Poller.IdleThreshold = "5s"
	}

	if cfg.Relay.BeatInterval == "" {
		cfg.Relay.BeatInterval = "30s"
	}
	if cfg.Relay.RoundsPerPhase == 0 {
		cfg.Relay.RoundsPerPhase = 3
	}
	if cfg.Relay.HarvestTimeout == "" {
		cfg.Relay.HarvestTimeout = "10m"
	}

	if cfg.Todo.MaxReviewRounds == 0 {
		cfg.Todo.MaxReviewRounds = 3
	}
	if cfg.Todo.RoadmapPath == "" {
		cfg.Todo.RoadmapPath = "todos/roadmap.md"
	}

	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}

	if cfg.Worktree.TreesDir == "" {
		cfg.Worktree.TreesDir = "trees"
	}

	if cfg.Federation.HeartbeatInterval == "" {
		cfg.Federation.HeartbeatInterval = "30s"
	}
	if cfg.Federation.StaleThreshold == "" {
		cfg.Federation.StaleThreshold = "60s"
	}
}
