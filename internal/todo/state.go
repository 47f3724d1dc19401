// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadState parses todos/{slug}/state.yaml. A missing file returns the
// zero State with ok=false rather than an error — callers treat an
// absent state.yaml as "not yet entered the tracked phases."
func LoadState(workingDir, slug string) (State, bool, error) {
	path := filepath.Join(workingDir, "todos", slug, "state.yaml")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var st State
	if err := yaml.Unmarshal(raw, &st); err != nil {
		return State{}, false, err
	}
	return st, true, nil
}

// SaveState writes todos/{slug}/state.yaml atomically (write-tmp,
// rename), matching the registry store's persistence idiom.
func SaveState(workingDir, slug string, st State) error {
	dir := filepath.Join(workingDir, "todos", slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, "state.yaml")

	raw, err := yaml.Marshal(st)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// fileExists is a small helper shared by the state-machine checks.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// anyDoneDirFor reports whether done/{*}-{slug}/ exists, returning its
// path if so.
func anyDoneDirFor(workingDir, slug string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(workingDir, "done", "*-"+slug))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}
