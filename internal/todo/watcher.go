// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package todo

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/teleclaude/teleclaude/internal/events"
)

// RoadmapWatcher watches todos/roadmap.md for external edits (a human
// appending a new entry, say) and republishes todo.directive so the
// orchestrator knows to re-invoke the state machine rather than waiting
// on its own poll loop.
type RoadmapWatcher struct {
	path string
	bus  events.EventBus
}

// NewRoadmapWatcher builds a watcher for workingDir/todos/roadmap.md.
func NewRoadmapWatcher(workingDir string, bus events.EventBus) *RoadmapWatcher {
	return &RoadmapWatcher{path: filepath.Join(workingDir, "todos", "roadmap.md"), bus: bus}
}

// Run watches until ctx is cancelled. fsnotify watches the containing
// directory, not the file directly, since editors commonly replace
// rather than write-in-place.
func (w *RoadmapWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = err
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if w.bus != nil {
				w.bus.Publish(ctx, events.Event{
					Type:    events.EventTodoDirective,
					Payload: map[string]interface{}{"reason": "roadmap_changed", "path": w.path},
				})
			}
		}
	}
}
