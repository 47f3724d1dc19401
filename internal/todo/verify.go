// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

var taskBoxPattern = regexp.MustCompile(`(?m)^\s*-\s*\[([ xX])\]`)

// VerifyPhase names the phase verify-artifacts checks against.
type VerifyPhase string

const (
	VerifyPhaseBuild  VerifyPhase = "build"
	VerifyPhaseReview VerifyPhase = "review"
)

// VerifyArtifacts is the mechanical (non-AI) predicate of spec.md §4.7.
func VerifyArtifacts(ctx context.Context, workingDir, slug string, phase VerifyPhase) VerifyReport {
	dir := filepath.Join(workingDir, "todos", slug)

	st, ok, err := LoadState(workingDir, slug)
	if err != nil {
		return VerifyReport{Passed: false, Report: fmt.Sprintf("state.yaml parse error: %v", err)}
	}
	if ok && !statePhaseConsistent(st, phase) {
		return VerifyReport{Passed: false, Report: fmt.Sprintf("state.yaml phase %q inconsistent with claimed phase %q", st.Phase, phase)}
	}

	switch phase {
	case VerifyPhaseBuild:
		return verifyBuildPhase(ctx, workingDir, slug, dir)
	case VerifyPhaseReview:
		return verifyReviewPhase(dir)
	default:
		return VerifyReport{Passed: true}
	}
}

func statePhaseConsistent(st State, phase VerifyPhase) bool {
	switch phase {
	case VerifyPhaseBuild:
		return st.Phase == PhaseBuild || st.Phase == "" || st.Phase == PhasePrepare || st.Phase == PhaseReview
	case VerifyPhaseReview:
		return st.Phase == PhaseReview || st.Phase == PhaseBuild
	default:
		return true
	}
}

// verifyBuildPhase checks the commit and quality-checklist conditions of
// spec.md §4.7's build-phase verify-artifacts. The "all boxes checked"
// condition from that same paragraph is deliberately NOT enforced here:
// next_work's own step 8 (hasUncheckedBox) already gates on remaining
// boxes and dispatches next-build for them, so folding the identical
// check into this predicate would make every in-progress build loop
// fail verify before it ever reaches step 8. AllPlanBoxesChecked is kept
// standalone for callers (e.g. a finalize-readiness check) that want it.
func verifyBuildPhase(ctx context.Context, workingDir, slug, dir string) VerifyReport {
	treeDir := filepath.Join(workingDir, "trees", slug)
	if hasExtraCommits, err := worktreeHasCommitBeyondBranchCreation(ctx, treeDir); err != nil {
		return VerifyReport{Passed: false, Report: fmt.Sprintf("cannot inspect worktree commits: %v", err)}
	} else if !hasExtraCommits {
		return VerifyReport{Passed: false, Report: "worktree has no commit beyond branch creation"}
	}

	checklistPath := filepath.Join(dir, "quality-checklist.md")
	raw, err := os.ReadFile(checklistPath)
	if err != nil {
		return VerifyReport{Passed: false, Report: fmt.Sprintf("cannot read quality-checklist.md: %v", err)}
	}
	if !sectionHasCheckedItem(string(raw), "## Build Gates") {
		return VerifyReport{Passed: false, Report: "quality-checklist.md has no checked item under ## Build Gates"}
	}

	return VerifyReport{Passed: true}
}

func verifyReviewPhase(dir string) VerifyReport {
	path := filepath.Join(dir, "review-findings.md")
	raw, err := os.ReadFile(path)
	if err != nil {
		return VerifyReport{Passed: false, Report: fmt.Sprintf("cannot read review-findings.md: %v", err)}
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return VerifyReport{Passed: false, Report: "review-findings.md is empty"}
	}
	if isReviewFindingsTemplate(string(raw)) {
		return VerifyReport{Passed: false, Report: "review-findings.md looks like an unfilled template"}
	}
	verdict, err := ParseVerdict(path)
	if err != nil {
		return VerifyReport{Passed: false, Report: fmt.Sprintf("cannot parse verdict: %v", err)}
	}
	if verdict == VerdictNone {
		return VerifyReport{Passed: false, Report: "review-findings.md has no verdict line"}
	}
	return VerifyReport{Passed: true}
}

// AllPlanBoxesChecked reports whether every task box in an
// implementation-plan.md body is checked. Standalone from
// verifyBuildPhase for the reason given above it.
func AllPlanBoxesChecked(raw string) bool {
	matches := taskBoxPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if strings.ToLower(m[1]) != "x" {
			return false
		}
	}
	return true
}

func sectionHasCheckedItem(raw, heading string) bool {
	lines := strings.Split(raw, "\n")
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			if inSection {
				return false
			}
			inSection = strings.EqualFold(trimmed, heading)
			continue
		}
		if inSection {
			m := taskBoxPattern.FindStringSubmatch(line)
			if m != nil && strings.ToLower(m[1]) == "x" {
				return true
			}
		}
	}
	return false
}

// worktreeHasCommitBeyondBranchCreation approximates "the branch has a
// commit beyond its creation point" as "more than one commit in total on
// HEAD"; no merge-base against the branch's starting point is computed.
func worktreeHasCommitBeyondBranchCreation(ctx context.Context, treeDir string) (bool, error) {
	if _, err := os.Stat(treeDir); err != nil {
		return false, err
	}
	cmd := exec.CommandContext(ctx, "git", "rev-list", "--count", "HEAD")
	cmd.Dir = treeDir
	out, err := cmd.Output()
	if err != nil {
		return false, err
	}
	count := strings.TrimSpace(string(out))
	return count != "" && count != "0" && count != "1", nil
}
