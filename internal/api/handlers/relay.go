// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teleclaude/teleclaude/internal/relay"
)

// RelayHandler handles relay API requests (spec.md §4.4).
type RelayHandler struct {
	manager *relay.Manager
}

// NewRelayHandler creates a new relay handler.
func NewRelayHandler(mgr *relay.Manager) *RelayHandler {
	return &RelayHandler{manager: mgr}
}

// participantRequest is one participant in an EstablishDirect/StartGathering
// request body.
type participantRequest struct {
	SessionID      string `json:"session_id"`
	TerminalHandle string `json:"terminal_handle"`
	DisplayName    string `json:"display_name"`
	Role           string `json:"role"`
}

func toParticipant(p participantRequest) relay.Participant {
	role := relay.ParticipantSpeaker
	switch p.Role {
	case "harvester":
		role = relay.ParticipantHarvester
	case "human":
		role = relay.ParticipantHuman
	}
	return relay.Participant{
		SessionID:      p.SessionID,
		TerminalHandle: p.TerminalHandle,
		DisplayName:    p.DisplayName,
		Role:           role,
	}
}

// EstablishDirectRequest is the request body for a one-to-one relay.
type EstablishDirectRequest struct {
	A participantRequest `json:"a"`
	B participantRequest `json:"b"`
}

// EstablishDirect creates (or returns the existing) one-to-one relay
// between two participants.
func (h *RelayHandler) EstablishDirect(w http.ResponseWriter, r *http.Request) {
	var req EstablishDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.A.SessionID == "" || req.B.SessionID == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "both a.session_id and b.session_id are required")
		return
	}

	rel, err := h.manager.EstablishDirect(r.Context(), toParticipant(req.A), toParticipant(req.B))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrRelayError, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"relay_id":     rel.ID,
		"participants": rel.Participants(),
	})
}

// StartGatheringRequest is the request body for a gathering relay.
type StartGatheringRequest struct {
	Participants []participantRequest `json:"participants"`
}

// StartGathering creates a gathering relay with exactly one harvester and
// one or more speakers.
func (h *RelayHandler) StartGathering(w http.ResponseWriter, r *http.Request) {
	var req StartGatheringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}

	participants := make([]relay.Participant, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, toParticipant(p))
	}

	rel, err := h.manager.StartGathering(r.Context(), participants)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrRelayError, err.Error())
		return
	}

	// The gathering must keep running after this request completes, so it
	// is driven on a context detached from r.Context().
	h.manager.RunGathering(context.Background(), rel)

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"relay_id":     rel.ID,
		"mode":         rel.Mode,
		"phase":        rel.CurrentPhase(),
		"participants": rel.Participants(),
	})
}

// Get returns a relay's current state.
func (h *RelayHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rel, ok := h.manager.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "relay not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"relay_id":     rel.ID,
		"mode":         rel.Mode,
		"phase":        rel.CurrentPhase(),
		"participants": rel.Participants(),
	})
}

// End deactivates a relay.
func (h *RelayHandler) End(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.manager.End(r.Context(), id); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrRelayError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{"ended": id})
}
