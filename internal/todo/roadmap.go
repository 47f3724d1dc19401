// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// roadmapLinePattern matches "### [{status}] {slug} — {description}"
// lines, tolerant of whitespace and both ASCII '-' and em-dash between
// slug and description (spec.md §6.1).
var roadmapLinePattern = regexp.MustCompile(`^###\s*\[([ x>])\]\s*([a-zA-Z0-9_-]+)\s*(?:—|-)\s*(.*)$`)

// RoadmapEntry is one parsed roadmap.md heading.
type RoadmapEntry struct {
	Status      string // " ", ">", or "x"
	Slug        string
	Description string
	lineNum     int
}

// ParseRoadmap reads and parses todos/roadmap.md.
func ParseRoadmap(path string) ([]RoadmapEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []RoadmapEntry
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		m := roadmapLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, RoadmapEntry{
			Status:      m[1],
			Slug:        m[2],
			Description: strings.TrimSpace(m[3]),
			lineNum:     lineNum,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ResolveSlug picks the slug the next call should act on: the first
// in-progress ([>]) entry if any, else the first pending ([ ]) entry.
// Returns ok=false on an empty or exhausted roadmap.
func ResolveSlug(path string) (slug string, ok bool) {
	entries, err := ParseRoadmap(path)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.Status == RoadmapPhaseInProgress {
			return e.Slug, true
		}
	}
	for _, e := range entries {
		if e.Status == RoadmapPhasePending {
			return e.Slug, true
		}
	}
	return "", false
}

// PromoteToInProgress rewrites the roadmap line for slug from [ ] to [>].
// A no-op if the slug is already in progress or is not found.
func PromoteToInProgress(path, slug string) error {
	return setRoadmapStatus(path, slug, RoadmapPhasePending, RoadmapPhaseInProgress)
}

// PromoteToDone rewrites the roadmap line for slug from [>] to [x].
func PromoteToDone(path, slug string) error {
	return setRoadmapStatus(path, slug, RoadmapPhaseInProgress, RoadmapPhaseDone)
}

func setRoadmapStatus(path, slug, from, to string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(raw), "\n")
	changed := false
	for i, line := range lines {
		loc := roadmapLinePattern.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		m := roadmapLinePattern.FindStringSubmatch(line)
		if m[2] != slug || m[1] != from {
			continue
		}
		// Replace only the bracketed status marker, preserving everything else verbatim.
		statusStart, statusEnd := loc[2], loc[3]
		lines[i] = line[:statusStart] + to + line[statusEnd:]
		changed = true
		break
	}
	if !changed {
		return nil
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}
