// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teleclaude/teleclaude/internal/events"
)

// NotifyHandler lets a running agent session signal a state transition
// back to the daemon directly, rather than relying solely on the poller
// noticing idle/exit (spec.md §7's notify.done/notify.blocked/notify.error
// signal-session events).
type NotifyHandler struct {
	bus events.EventBus
}

// NewNotifyHandler creates a new notify handler.
func NewNotifyHandler(bus events.EventBus) *NotifyHandler {
	return &NotifyHandler{bus: bus}
}

// NotifyRequest is the request body for the notify endpoint.
type NotifyRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Type      string `json:"type"` // done, blocked, error
}

// NotifyResponse is the response from the notify endpoint.
type NotifyResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Notify emits a notification event onto the bus.
func (h *NotifyHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON")
		return
	}
	if req.Message == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "message is required")
		return
	}

	eventType := events.EventNotifyDone
	switch req.Type {
	case "blocked":
		eventType = events.EventNotifyBlocked
	case "error":
		eventType = events.EventNotifyError
	case "", "done":
		eventType = events.EventNotifyDone
	default:
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "type must be done, blocked, or error")
		return
	}

	id := uuid.NewString()
	now := time.Now()
	if err := h.bus.Publish(r.Context(), events.Event{
		ID:        id,
		Type:      eventType,
		Timestamp: now,
		Payload: map[string]interface{}{
			"session_id": req.SessionID,
			"message":    req.Message,
		},
	}); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, NotifyResponse{
		ID:        id,
		Type:      eventType,
		Timestamp: now.Format(time.RFC3339),
	})
}
