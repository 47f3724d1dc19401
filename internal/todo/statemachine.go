// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/teleclaude/teleclaude/internal/worktree"
)

// Engine wires the pure state-machine functions to their filesystem,
// worktree, and availability dependencies. next_prepare/next_work
// themselves are free functions so their logic is easy to read straight
// through; Engine just supplies the environment.
type Engine struct {
	WorkingDir      string
	Picker          Picker
	Worktrees       worktree.Manager
	Gates           []GateCommand
	MaxReviewRounds int

	// ensureGroup collapses concurrent ensure_worktree calls for the same
	// slug (e.g. a dispatch-loop tick racing a manual `run_slug` call)
	// into a single git-worktree-add invocation.
	ensureGroup singleflight.Group
}

// NewEngine builds an Engine, defaulting gates and max review rounds.
func NewEngine(workingDir string, picker Picker, wt worktree.Manager, maxReviewRounds int) *Engine {
	if maxReviewRounds <= 0 {
		maxReviewRounds = 3
	}
	return &Engine{
		WorkingDir:      workingDir,
		Picker:          picker,
		Worktrees:       wt,
		Gates:           DefaultGates(),
		MaxReviewRounds: maxReviewRounds,
	}
}

func (e *Engine) resolveSlug(slug string) (string, bool) {
	if slug != "" {
		return slug, true
	}
	return ResolveSlug(filepath.Join(e.WorkingDir, "todos", "roadmap.md"))
}

func (e *Engine) pick(taskType string) (agent, tier string) {
	if e.Picker == nil {
		return "claude", "slow"
	}
	agent, tier, ok := e.Picker.Pick(taskType)
	if !ok {
		return "claude", "slow"
	}
	return agent, tier
}

// NextPrepare implements spec.md §4.7 Phase A.
func (e *Engine) NextPrepare(ctx context.Context, slug string) Directive {
	resolved, ok := e.resolveSlug(slug)
	if !ok {
		return errDirective(ErrCodeNoWork, "No pending items in roadmap.")
	}

	if slug == "" {
		_ = PromoteToInProgress(filepath.Join(e.WorkingDir, "todos", "roadmap.md"), resolved)
	}

	dir := filepath.Join(e.WorkingDir, "todos", resolved)

	if !fileExists(filepath.Join(dir, "requirements.md")) {
		agent, tier := e.pick("prepare")
		return toolCall("next-prepare", resolved, e.WorkingDir, agent, tier, "", "engage as collaborator")
	}
	if !fileExists(filepath.Join(dir, "implementation-plan.md")) {
		agent, tier := e.pick("prepare")
		return toolCall("next-prepare", resolved, e.WorkingDir, agent, tier, "", "engage as collaborator")
	}
	return preparedOK(resolved)
}

// NextWork implements spec.md §4.7 Phase B. Checks run in order; the
// first match returns.
func (e *Engine) NextWork(ctx context.Context, slug string) Directive {
	resolved, ok := e.resolveSlug(slug)
	if !ok {
		return errDirective(ErrCodeNoWork, "No pending items in roadmap.")
	}

	if path, found := anyDoneDirFor(e.WorkingDir, resolved); found {
		return completeOK(resolved, path)
	}

	dir := filepath.Join(e.WorkingDir, "todos", resolved)
	if !fileExists(filepath.Join(dir, "requirements.md")) || !fileExists(filepath.Join(dir, "implementation-plan.md")) {
		return errDirective(ErrCodeNotPrepared, "run next_prepare first")
	}

	treeDir := filepath.Join(e.WorkingDir, "trees", resolved)
	if e.Worktrees != nil {
		if _, err, _ := e.ensureGroup.Do(resolved, func() (interface{}, error) {
			return e.Worktrees.EnsureWorktree(ctx, resolved)
		}); err != nil {
			return errDirective(ErrCodeBuildGate, "ensure_worktree failed: "+err.Error())
		}
		status, err := e.Worktrees.Status(resolved)
		if err == nil && status.HasChanges() {
			agent, tier := e.pick("commit")
			return toolCall("commit-pending", resolved, e.WorkingDir, agent, tier, treeDir, "")
		}
	}

	// Build-gates and verify-artifacts(build) are the transition-out-of-
	// build checks: they only have to hold once the plan itself has no
	// remaining unchecked boxes. Running them unconditionally on every
	// in-progress build would fail every churn iteration on "no commit
	// yet" or "no checklist yet" before the builder has even been given
	// a chance to produce one, so unchecked-box dispatch is checked
	// first and short-circuits straight to next-build.
	planRaw, err := os.ReadFile(filepath.Join(dir, "implementation-plan.md"))
	if err == nil && hasUncheckedBox(string(planRaw)) {
		agent, tier := e.pick("build")
		return toolCall("next-build", resolved, e.WorkingDir, agent, tier, treeDir, "")
	}

	if report := RunBuildGates(ctx, treeDir, e.Gates); !report.Passed {
		return errDirective(ErrCodeBuildGate, report.Report)
	}
	if report := VerifyArtifacts(ctx, e.WorkingDir, resolved, VerifyPhaseBuild); !report.Passed {
		return errDirective(ErrCodeVerify, report.Report)
	}

	if !fileExists(filepath.Join(dir, "review-findings.md")) {
		agent, tier := e.pick("review")
		return toolCall("next-review", resolved, e.WorkingDir, agent, tier, treeDir, "")
	}

	verdict, err := ParseVerdict(filepath.Join(dir, "review-findings.md"))
	if err != nil {
		return errDirective(ErrCodeVerify, "cannot parse review-findings.md: "+err.Error())
	}

	switch verdict {
	case VerdictRequestChanges:
		st, _, _ := LoadState(e.WorkingDir, resolved)
		if st.ReviewRound >= e.MaxReviewRounds {
			return e.closurePolicy(resolved, st)
		}
		agent, tier := e.pick("fix")
		return toolCall("next-fix-review", resolved, e.WorkingDir, agent, tier, treeDir, "")
	case VerdictApprove:
		agent, tier := e.pick("finalize")
		return toolCall("next-finalize", resolved, e.WorkingDir, agent, tier, "", "")
	default:
		return errDirective(ErrCodeAmbiguousVerdict, "review-findings.md verdict is neither APPROVE nor REQUEST CHANGES")
	}
}

// closurePolicy implements spec.md §4.7 "Closure at review-round limit":
// mark the todo blocked, leave a signal slot for the orchestrator to
// fill, and stop recommending further fix iterations.
func (e *Engine) closurePolicy(slug string, st State) Directive {
	st.Blocked = true
	_ = SaveState(e.WorkingDir, slug, st)
	return errDirective(ErrCodeVerify, "review_round limit reached; todo marked blocked")
}

func hasUncheckedBox(raw string) bool {
	matches := taskBoxPattern.FindAllStringSubmatch(raw, -1)
	for _, m := range matches {
		if m[1] == " " {
			return true
		}
	}
	return false
}
