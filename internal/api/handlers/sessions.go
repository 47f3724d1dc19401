// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/registry"
)

// SessionHandler handles session-related API requests.
type SessionHandler struct {
	registry registry.Registry
	bridge   bridge.Bridge
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(reg registry.Registry, br bridge.Bridge) *SessionHandler {
	return &SessionHandler{registry: reg, bridge: br}
}

// List returns all sessions, optionally filtered by agent_kind and role.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := registry.Filter{
		IncludeClosed: query.Get("include_closed") == "1",
	}
	if kind := query.Get("agent_kind"); kind != "" {
		filter.AgentKind = registry.ParseAgentKind(kind)
	}
	if role := query.Get("role"); role != "" {
		for rl := registry.RoleArchitect; rl <= registry.RolePeer; rl++ {
			if rl.String() == role {
				filter.Role = rl
			}
		}
	}

	sessions := h.registry.List(filter)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// CreateRequest is the request body for spawning a session directly
// (bypassing the todo dispatch loop — used for ad-hoc human/peer sessions).
type CreateRequest struct {
	AgentKind   string `json:"agent_kind"`
	Role        string `json:"role"`
	ProjectPath string `json:"project_path"`
	Subfolder   string `json:"subfolder"`
}

// Create spawns a new session.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.ProjectPath == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "project_path is required")
		return
	}

	spec := registry.Spec{
		AgentKind:   registry.ParseAgentKind(req.AgentKind),
		ProjectPath: req.ProjectPath,
		Subfolder:   req.Subfolder,
	}
	sess, err := h.registry.Create(r.Context(), spec)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrSessionError, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{"session": sess})
}

// Get returns a single session by ID.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, ok := h.registry.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"session": sess})
}

// Close tombstones a session.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "closed via API"
	}

	if err := h.registry.Close(r.Context(), id, reason); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrSessionError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"closed": id})
}

// SendTextRequest is the request body for writing into a session's pane.
type SendTextRequest struct {
	Text             string `json:"text"`
	AppendExitMarker bool   `json:"append_exit_marker"`
}

// SendText writes text to a session's pane.
func (h *SessionHandler) SendText(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, ok := h.registry.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "session not found")
		return
	}

	var req SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "text is required")
		return
	}

	handle := handleFromTarget(sess.TerminalHandle)
	if err := h.bridge.SendInput(r.Context(), handle, req.Text, req.AppendExitMarker); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrSessionError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"sent": true})
}

// handleFromTarget splits a "session:window" terminal handle back into a
// bridge.Handle.
func handleFromTarget(target string) bridge.Handle {
	for i := len(target) - 1; i >= 0; i-- {
		if target[i] == ':' {
			return bridge.Handle{Session: target[:i], Window: target[i+1:]}
		}
	}
	return bridge.Handle{Session: target}
}
