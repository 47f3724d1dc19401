// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/teleclaude/teleclaude/internal/api/handlers"
	"github.com/teleclaude/teleclaude/internal/api/middleware"
	"github.com/teleclaude/teleclaude/internal/api/version"
	"github.com/teleclaude/teleclaude/internal/availability"
	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/events"
	"github.com/teleclaude/teleclaude/internal/registry"
	"github.com/teleclaude/teleclaude/internal/relay"
	"github.com/teleclaude/teleclaude/internal/todo"
	"github.com/teleclaude/teleclaude/internal/worktree"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string // Path to TLS certificate file
	TLSKey  string // Path to TLS private key file
}

// Dependencies holds all dependencies for the daemon control surface
// (spec.md §6.2).
type Dependencies struct {
	Registry        registry.Registry
	Bridge          bridge.Bridge
	Availability    *availability.Tracker
	Relays          *relay.Manager
	TodoEngine      *todo.Engine
	WorktreeManager worktree.Manager
	EventBus        events.EventBus
	Version         string
}

// NewRouter builds the daemon's HTTP control surface: list/start/end
// sessions, send text (direct peer links are established through the
// relay routes, not through send), query/mark availability, drive
// next_prepare/next_work, start/get/end relays (one-to-one and
// gathering), plus a live event stream and a health check.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(version.Middleware)

	r.HandleFunc("/healthz", handlers.NewHealthHandler(deps.Registry).Healthz).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	sessionHandler := handlers.NewSessionHandler(deps.Registry, deps.Bridge)
	api.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	api.HandleFunc("/sessions", sessionHandler.Create).Methods("POST")
	api.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET")
	api.HandleFunc("/sessions/{id}", sessionHandler.Close).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/send", sessionHandler.SendText).Methods("POST")

	availabilityHandler := handlers.NewAvailabilityHandler(deps.Availability)
	api.HandleFunc("/availability", availabilityHandler.List).Methods("GET")
	api.HandleFunc("/availability/{kind}", availabilityHandler.Get).Methods("GET")
	api.HandleFunc("/availability/{kind}/unavailable", availabilityHandler.MarkUnavailable).Methods("POST")
	api.HandleFunc("/availability/{kind}/available", availabilityHandler.MarkAvailable).Methods("POST")

	relayHandler := handlers.NewRelayHandler(deps.Relays)
	api.HandleFunc("/relays", relayHandler.EstablishDirect).Methods("POST")
	api.HandleFunc("/relays/gatherings", relayHandler.StartGathering).Methods("POST")
	api.HandleFunc("/relays/{id}", relayHandler.Get).Methods("GET")
	api.HandleFunc("/relays/{id}", relayHandler.End).Methods("DELETE")

	todoHandler := handlers.NewTodoHandler(deps.TodoEngine)
	api.HandleFunc("/todo/next-prepare", todoHandler.NextPrepare).Methods("POST")
	api.HandleFunc("/todo/next-work", todoHandler.NextWork).Methods("POST")
	api.HandleFunc("/todo/{slug}/verify", todoHandler.Verify).Methods("GET")

	if deps.WorktreeManager != nil {
		worktreeHandler := handlers.NewWorktreeHandler(deps.WorktreeManager)
		api.HandleFunc("/worktrees", worktreeHandler.List).Methods("GET")
		api.HandleFunc("/worktrees/{slug}", worktreeHandler.Get).Methods("GET")
		api.HandleFunc("/worktrees/{slug}", worktreeHandler.Remove).Methods("DELETE")
	}

	if deps.EventBus != nil {
		eventHandler := handlers.NewEventHandler(deps.EventBus)
		api.HandleFunc("/events", eventHandler.History).Methods("GET")
		streamHandler := handlers.NewStreamHandler(deps.EventBus)
		api.HandleFunc("/stream", streamHandler.WebSocket).Methods("GET")
		notifyHandler := handlers.NewNotifyHandler(deps.EventBus)
		api.HandleFunc("/notify", notifyHandler.Notify).Methods("POST")
	}

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server.
// If TLS is configured (tls_cert and tls_key), uses HTTPS.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if tlsEnabled {
		certPath := expandPath(s.cfg.TLSCert)
		keyPath := expandPath(s.cfg.TLSKey)
		log.Printf("API server listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("API server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
