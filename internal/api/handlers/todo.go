// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teleclaude/teleclaude/internal/todo"
)

// TodoHandler drives the todo state machine over HTTP (spec.md §4.7).
type TodoHandler struct {
	engine *todo.Engine
}

// NewTodoHandler creates a new todo handler.
func NewTodoHandler(engine *todo.Engine) *TodoHandler {
	return &TodoHandler{engine: engine}
}

// NextPrepare picks the next unprepared item and advances it to prepared.
func (h *TodoHandler) NextPrepare(w http.ResponseWriter, r *http.Request) {
	d := h.engine.NextPrepare(r.Context(), r.URL.Query().Get("slug"))
	writeDirective(w, d)
}

// NextWork advances the named (or next-picked) item's build/review/
// finalize pipeline by one tool call.
func (h *TodoHandler) NextWork(w http.ResponseWriter, r *http.Request) {
	d := h.engine.NextWork(r.Context(), r.URL.Query().Get("slug"))
	writeDirective(w, d)
}

// Verify runs the mechanical verify-artifacts predicate for an item's
// current phase.
func (h *TodoHandler) Verify(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	phase := todo.VerifyPhase(r.URL.Query().Get("phase"))
	if phase == "" {
		phase = todo.VerifyPhaseBuild
	}

	report := todo.VerifyArtifacts(r.Context(), h.engine.WorkingDir, slug, phase)

	status := http.StatusOK
	if !report.Passed {
		status = http.StatusConflict
	}
	WriteJSON(w, status, map[string]interface{}{
		"slug":   slug,
		"phase":  phase,
		"passed": report.Passed,
		"report": report.Report,
	})
}

// writeDirective serializes a todo.Directive, mapping DirectiveError to a
// 4xx/5xx status matching its ErrorCode.
func writeDirective(w http.ResponseWriter, d todo.Directive) {
	if d.Kind != todo.DirectiveError {
		WriteJSON(w, http.StatusOK, d)
		return
	}

	status := http.StatusConflict
	switch d.ErrorCode {
	case todo.ErrCodeNoWork:
		status = http.StatusNotFound
	case todo.ErrCodeNotPrepared, todo.ErrCodeAmbiguousVerdict, todo.ErrCodeBuildGate, todo.ErrCodeVerify:
		status = http.StatusConflict
	}
	WriteErrorWithDetails(w, status, ErrTodoError, d.Message, map[string]interface{}{
		"error_code": d.ErrorCode.String(),
		"slug":       d.Slug,
	})
}
