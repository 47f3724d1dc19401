// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

var verdictLinePattern = regexp.MustCompile(`(?i)^\s*(?:\*\*)?verdict(?:\*\*)?\s*:?\s*(APPROVE|REQUEST CHANGES)\s*$`)

// ParseVerdict scans review-findings.md for its verdict line. Returns
// VerdictNone if no recognizable verdict line is present.
func ParseVerdict(path string) (Verdict, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return VerdictNone, nil
	}
	if err != nil {
		return VerdictNone, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := verdictLinePattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		if strings.EqualFold(m[1], "APPROVE") {
			return VerdictApprove, nil
		}
		return VerdictRequestChanges, nil
	}
	if err := scanner.Err(); err != nil {
		return VerdictNone, err
	}
	return VerdictNone, nil
}

// isReviewFindingsTemplate detects an unfilled review-findings.md
// scaffold: one lacking a populated "## Critical" or "## Verdict"
// heading (spec.md §4.7 Verify-artifacts, phase=review).
func isReviewFindingsTemplate(raw string) bool {
	hasCritical := sectionHasContent(raw, "## Critical")
	hasVerdict := sectionHasContent(raw, "## Verdict")
	return !hasCritical && !hasVerdict
}

// sectionHasContent reports whether the named "## Heading" section has
// any non-blank line before the next "## " heading or EOF.
func sectionHasContent(raw, heading string) bool {
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
		if inSection && trimmed != "" {
			return true
		}
	}
	return false
}
