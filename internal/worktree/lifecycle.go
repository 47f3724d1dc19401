// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worktree

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/events"
)

// HookResult is the outcome of running one lifecycle hook.
type HookResult struct {
	Name     string
	Success  bool
	Duration time.Duration
	Output   string
	Error    error
}

// LifecycleRunner executes the on_create hooks configured for a worktree,
// emitting worktree.hook.started/finished events around each one.
type LifecycleRunner struct {
	bus events.EventBus
}

// NewLifecycleRunner creates a new lifecycle runner.
func NewLifecycleRunner(bus events.EventBus) *LifecycleRunner {
	return &LifecycleRunner{bus: bus}
}

// RunOnCreate runs all on_create hooks against a freshly-created
// trees/{slug} worktree (spec.md §4.7 step 4), in configuration order,
// stopping at the first failure.
func (r *LifecycleRunner) RunOnCreate(ctx context.Context, wt *WorktreeInfo, hooks []config.HookConfig) ([]HookResult, error) {
	results := make([]HookResult, 0, len(hooks))

	for _, hook := range hooks {
		result := r.runHook(ctx, wt, hook)
		results = append(results, result)
		if !result.Success {
			return results, fmt.Errorf("on_create hook %q failed: %w", hook.Name, result.Error)
		}
	}
	return results, nil
}

func (r *LifecycleRunner) runHook(ctx context.Context, wt *WorktreeInfo, hook config.HookConfig) HookResult {
	start := time.Now()

	timeout := 5 * time.Minute
	if hook.Timeout != "" {
		if d, err := time.ParseDuration(hook.Timeout); err == nil {
			timeout = d
		}
	}

	hookCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if r.bus != nil {
		r.bus.Publish(ctx, events.Event{
			Type:     "worktree.hook.started",
			Worktree: wt.Name(),
			Payload: map[string]interface{}{
				"worktree":  wt.Name(),
				"hook_name": hook.Name,
				"command":   hook.Command,
			},
		})
	}

	if len(hook.Command) == 0 {
		return HookResult{Name: hook.Name, Success: false, Duration: time.Since(start), Error: fmt.Errorf("empty command")}
	}

	cmd := exec.CommandContext(hookCtx, hook.Command[0], hook.Command[1:]...)
	cmd.Dir = wt.Path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += stderr.String()
	}

	result := HookResult{Name: hook.Name, Success: err == nil, Duration: duration, Output: output, Error: err}

	if r.bus != nil {
		payload := map[string]interface{}{
			"worktree":  wt.Name(),
			"hook_name": hook.Name,
			"success":   result.Success,
			"duration":  result.Duration.String(),
		}
		if output != "" {
			payload["output"] = output
		}
		if err != nil {
			payload["error"] = err.Error()
		}
		r.bus.Publish(ctx, events.Event{Type: "worktree.hook.finished", Worktree: wt.Name(), Payload: payload})
	}

	return result
}
