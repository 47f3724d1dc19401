// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teleclaude/teleclaude/internal/worktree"
)

// WorktreeHandler handles worktree-related API requests, reporting the
// trees/{slug} git worktrees backing in-progress work items (spec.md
// §4.7 step 4, §6.1).
type WorktreeHandler struct {
	mgr worktree.Manager
}

// NewWorktreeHandler creates a new worktree handler.
func NewWorktreeHandler(mgr worktree.Manager) *WorktreeHandler {
	return &WorktreeHandler{mgr: mgr}
}

// List returns all known worktrees.
func (h *WorktreeHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.Refresh(); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrWorktreeError, err.Error())
		return
	}

	trees, err := h.mgr.List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrWorktreeError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"worktrees": trees})
}

// Get returns a single worktree plus its live git status.
func (h *WorktreeHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	info, ok := h.mgr.GetBySlug(slug)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "worktree not found")
		return
	}

	status, err := h.mgr.Status(slug)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrWorktreeError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"worktree":    info,
		"status":      status,
		"has_changes": status.HasChanges(),
	})
}

// Remove deletes a worktree, optionally its branch too.
func (h *WorktreeHandler) Remove(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	deleteBranch := r.URL.Query().Get("delete_branch") == "1"

	if err := h.mgr.Remove(r.Context(), slug, deleteBranch); err != nil {
		WriteError(w, http.StatusBadRequest, ErrWorktreeError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"removed":        slug,
		"branch_deleted": deleteBranch,
	})
}
