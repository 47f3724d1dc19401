// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/teleclaude/teleclaude/internal/availability"
	"github.com/teleclaude/teleclaude/internal/registry"
)

// AvailabilityHandler handles agent-availability API requests
// (spec.md §4.6).
type AvailabilityHandler struct {
	tracker *availability.Tracker
}

// NewAvailabilityHandler creates a new availability handler.
func NewAvailabilityHandler(t *availability.Tracker) *AvailabilityHandler {
	return &AvailabilityHandler{tracker: t}
}

// List returns the availability record for every known agent kind.
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	kinds := []registry.AgentKind{registry.AgentClaude, registry.AgentCodex, registry.AgentGemini, registry.AgentShell}
	out := make(map[string]interface{}, len(kinds))
	for _, k := range kinds {
		out[k.String()] = h.tracker.Record(k)
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"availability": out})
}

// Get returns the availability record for one agent kind.
func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind := registry.ParseAgentKind(mux.Vars(r)["kind"])
	if kind == registry.AgentUnknown {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "unknown agent_kind")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"record": h.tracker.Record(kind)})
}

// MarkUnavailableRequest is the request body for marking an agent kind
// unavailable.
type MarkUnavailableRequest struct {
	UntilSeconds int    `json:"until_seconds"` // duration from now
	Reason       string `json:"reason"`
}

// MarkUnavailable records an outage/rate-limit advisory for an agent kind.
func (h *AvailabilityHandler) MarkUnavailable(w http.ResponseWriter, r *http.Request) {
	kind := registry.ParseAgentKind(mux.Vars(r)["kind"])
	if kind == registry.AgentUnknown {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "unknown agent_kind")
		return
	}

	var req MarkUnavailableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.UntilSeconds <= 0 {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "until_seconds must be positive")
		return
	}

	until := time.Now().Add(time.Duration(req.UntilSeconds) * time.Second)
	h.tracker.MarkUnavailable(r.Context(), kind, until, req.Reason)

	WriteJSON(w, http.StatusOK, map[string]interface{}{"agent_kind": kind.String(), "unavailable_until": until})
}

// MarkAvailable clears any outage advisory for an agent kind.
func (h *AvailabilityHandler) MarkAvailable(w http.ResponseWriter, r *http.Request) {
	kind := registry.ParseAgentKind(mux.Vars(r)["kind"])
	if kind == registry.AgentUnknown {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "unknown agent_kind")
		return
	}

	h.tracker.MarkAvailable(r.Context(), kind)

	WriteJSON(w, http.StatusOK, map[string]interface{}{"agent_kind": kind.String(), "available": true})
}
