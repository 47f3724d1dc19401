// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teleclaude/teleclaude/internal/app"
	"github.com/teleclaude/teleclaude/internal/config"
)

var version = "0.1"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "API server host (overrides config)")
	flag.IntVar(&port, "port", 0, "API server port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.BoolVar(&debug, "debug", false, "Enable debug mode")
	flag.Parse()

	if showVersion {
		fmt.Printf("teleclaude %s\n", version)
		os.Exit(0)
	}

	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	log.Printf("Using config: %s", configPath)

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Debug:      debug,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

// runInit handles the "teleclaude init" command.
func runInit() error {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: teleclaude init [options]

Create a new teleclaude.hjson configuration file in the current directory.

This command walks you through setting up the daemon's configuration with
interactive prompts. The generated file is fully commented to help you
understand and customize all available options.

Options:
  -h, -help    Show this help message

The command will ask about:
  - Project name (defaults to current directory name)
  - Control-surface port (defaults to 8765)
  - Repository directory the worktree manager should track
  - Which agent CLIs (claude, codex, gemini) are available, and their commands

Examples:
  teleclaude init              Create config with interactive prompts
  cd myproject && teleclaude init

After running init:
  1. Review and edit teleclaude.hjson as needed
  2. Run: ./teleclaude
  3. Point a chat adapter at http://localhost:8765`)
		return nil
	}

	configFile := "teleclaude.hjson"

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("TeleClaude Configuration Setup")
	fmt.Println("==============================")
	fmt.Println()
	fmt.Println("This will create a teleclaude.hjson configuration file in the current directory.")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	defaultName := filepath.Base(cwd)

	projectName := prompt(reader, "Project name", defaultName)

	portStr := prompt(reader, "API server port", "8765")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 8765
	}

	repoDir := prompt(reader, "Repository directory (worktrees are created under repo_dir/trees)", cwd)

	fmt.Println()
	fmt.Println("Agents are the AI-coding-agent CLIs dispatched into sessions (spec.md §4.6's fallback matrix picks among them).")
	var agents []agentPrompt
	for _, kind := range []string{"claude", "codex", "gemini"} {
		addAgent := prompt(reader, fmt.Sprintf("Configure agent %q? (y/n)", kind), "y")
		if strings.ToLower(addAgent) != "y" {
			continue
		}
		cmd := prompt(reader, "  Command to launch it", defaultAgentCommand(kind))
		agents = append(agents, agentPrompt{Kind: kind, Command: cmd})
	}

	configContent := generateConfig(projectName, port, repoDir, agents)

	if err := os.WriteFile(configFile, []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit teleclaude.hjson as needed")
	fmt.Println("  2. Run: ./teleclaude")
	fmt.Println("  3. Point a chat adapter at http://localhost:" + strconv.Itoa(port))
	fmt.Println()

	return nil
}

type agentPrompt struct {
	Kind    string
	Command string
}

func defaultAgentCommand(kind string) string {
	switch kind {
	case "claude":
		return "claude --dangerously-skip-permissions"
	case "codex":
		return "codex"
	case "gemini":
		return "gemini"
	default:
		return kind
	}
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for safe inclusion in an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(projectName string, port int, repoDir string, agents []agentPrompt) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // TeleClaude Daemon Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).

  // ---------------------------------------------------------------------------
  // Project Metadata
  // ---------------------------------------------------------------------------
  project: {
    name: "`)
	sb.WriteString(escapeHJSONValue(projectName))
	sb.WriteString(`"
    root: "`)
	sb.WriteString(escapeHJSONValue(repoDir))
	sb.WriteString(`"
  }

  // ---------------------------------------------------------------------------
  // API Server (spec.md §6.2)
  // ---------------------------------------------------------------------------
  server: {
    host: "127.0.0.1"
    port: `)
	sb.WriteString(strconv.Itoa(port))
	sb.WriteString(`

    // For HTTPS, uncomment and set paths to your certificates:
    // tls_cert: "~/.teleclaude/cert.pem"
    // tls_key: "~/.teleclaude/key.pem"
  }

  // ---------------------------------------------------------------------------
  // Worktrees (spec.md §4.7 step 4, §6.1)
  // ---------------------------------------------------------------------------
  //
  // Each work item gets its own git worktree under trees_dir, checked out
  // on a branch named after the item's slug.
  worktree: {
    repo_dir: "`)
	sb.WriteString(escapeHJSONValue(repoDir))
	sb.WriteString(`"
    trees_dir: "trees"
    // on_create: [
    //   { name: "install-deps", command: ["npm", "install"], timeout: "2m" }
    // ]
  }

  // ---------------------------------------------------------------------------
  // Agents (spec.md §4.6)
  // ---------------------------------------------------------------------------
  //
  // Each entry describes how to launch one agent_kind's CLI inside a fresh
  // bridge pane. command may be a string (split on whitespace) or an array.
  agents: [
`)

	if len(agents) == 0 {
		sb.WriteString(`    // Example:
    // { kind: "claude", command: "claude --dangerously-skip-permissions" }
    // { kind: "codex", command: "codex" }
    // { kind: "gemini", command: "gemini" }
    { kind: "shell", command: "/bin/sh" }
`)
	} else {
		for _, a := range agents {
			sb.WriteString(`    { kind: "`)
			sb.WriteString(escapeHJSONValue(a.Kind))
			sb.WriteString(`", command: "`)
			sb.WriteString(escapeHJSONValue(a.Command))
			sb.WriteString(`" }
`)
		}
	}

	sb.WriteString(`  ]

  // ---------------------------------------------------------------------------
  // Fallback Matrix (spec.md §4.6)
  // ---------------------------------------------------------------------------
  //
  // For each task_type, an ordered list of (agent_kind, thinking_tier)
  // candidates. The availability tracker walks the list, skipping any
  // agent_kind currently marked unavailable.
  fallback: [
    { task_type: "prepare", candidates: [ { agent_kind: "claude", thinking_tier: "slow" } ] }
    { task_type: "build", candidates: [ { agent_kind: "claude", thinking_tier: "medium" } ] }
    { task_type: "review", candidates: [ { agent_kind: "claude", thinking_tier: "slow" } ] }
    { task_type: "fix", candidates: [ { agent_kind: "claude", thinking_tier: "medium" } ] }
    { task_type: "commit", candidates: [ { agent_kind: "claude", thinking_tier: "fast" } ] }
    { task_type: "finalize", candidates: [ { agent_kind: "claude", thinking_tier: "fast" } ] }
  ]

  // ---------------------------------------------------------------------------
  // Bridge (spec.md §4.1)
  // ---------------------------------------------------------------------------
  bridge: {
    backend: "tmux" // or "pty"
    shell: "/bin/bash"
    history_limit: 50000
    exit_marker: "__TELECLAUDE_DONE_$?__"
  }

  // ---------------------------------------------------------------------------
  // Poller (spec.md §4.2)
  // ---------------------------------------------------------------------------
  poller: {
    poll_interval: "500ms"
    idle_threshold: "5s"
  }

  // ---------------------------------------------------------------------------
  // Relay (spec.md §4.4)
  // ---------------------------------------------------------------------------
  relay: {
    beat_interval: "30s"
    rounds_per_phase: 3
    harvest_timeout: "5m"
  }

  // ---------------------------------------------------------------------------
  // Todo State Machine (spec.md §4.7)
  // ---------------------------------------------------------------------------
  todo: {
    max_review_rounds: 3
    roadmap_path: "todos/roadmap.md"
  }

  // ---------------------------------------------------------------------------
  // Event History (spec.md §4.9)
  // ---------------------------------------------------------------------------
  events: {
    history: {
      max_events: 10000
      max_age: "1h"
    }
  }

  // ---------------------------------------------------------------------------
  // Chat Adapters
  // ---------------------------------------------------------------------------
  //
  // Adapters bridge specific chat platforms; their internals are out of
  // scope here, this just records the contract the daemon holds them to.
  //
  // adapters: [
  //   { name: "slack", max_message_length: 4000, peer_poll_interval: "2s" }
  // ]

  // ---------------------------------------------------------------------------
  // Federation
  // ---------------------------------------------------------------------------
  //
  // Uncomment to announce this daemon's availability on a shared channel
  // so a federation-aware adapter can route work to the least-busy host.
  //
  // federation: {
  //   enabled: true
  //   heartbeat_interval: "30s"
  //   stale_threshold: "60s"
  //   channel: "teleclaude-federation"
  // }
}
`)

	return sb.String()
}
