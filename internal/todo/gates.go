// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// GateCommand is one headless check build-gates runs against a worktree
// (formatter, linter, test suite, ...). Failure does not dispatch a
// worker; it surfaces as Error{BUILD_GATE} for the orchestrator.
type GateCommand struct {
	Name string
	Argv []string
}

// DefaultGates is the formatter/linter/test triad a Go worktree runs
// headlessly before a build is considered gate-clean.
func DefaultGates() []GateCommand {
	return []GateCommand{
		{Name: "fmt", Argv: []string{"gofmt", "-l", "."}},
		{Name: "vet", Argv: []string{"go", "vet", "./..."}},
		{Name: "test", Argv: []string{"go", "test", "./..."}},
	}
}

// RunBuildGates runs each gate command in dir in order, stopping at the
// first failure. This is a pure predicate: it never mutates the
// worktree.
func RunBuildGates(ctx context.Context, dir string, gates []GateCommand) GateReport {
	for _, g := range gates {
		if len(g.Argv) == 0 {
			continue
		}
		cmd := exec.CommandContext(ctx, g.Argv[0], g.Argv[1:]...)
		cmd.Dir = dir

		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		if err := cmd.Run(); err != nil {
			return GateReport{
				Passed: false,
				Report: fmt.Sprintf("gate %q failed: %v\n%s", g.Name, err, out.String()),
			}
		}
		// gofmt -l prints offending files on stdout with exit 0.
		if g.Name == "fmt" && out.Len() > 0 {
			return GateReport{
				Passed: false,
				Report: fmt.Sprintf("gate %q failed: unformatted files:\n%s", g.Name, out.String()),
			}
		}
	}
	return GateReport{Passed: true}
}
