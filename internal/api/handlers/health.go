// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/teleclaude/teleclaude/internal/registry"
)

// HealthHandler answers liveness checks.
type HealthHandler struct {
	registry registry.Registry
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(reg registry.Registry) *HealthHandler {
	return &HealthHandler{registry: reg}
}

// Healthz reports the daemon is up and the registry is reachable.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.List(registry.Filter{IncludeClosed: false})
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"live_sessions": len(sessions),
	})
}
