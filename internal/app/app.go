// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app is the daemon's composition root: it loads configuration,
// builds every manager described across spec.md, and drives the
// orchestrator's dispatch loop until asked to shut down.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/teleclaude/teleclaude/internal/api"
	"github.com/teleclaude/teleclaude/internal/availability"
	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/config"
	"github.com/teleclaude/teleclaude/internal/events"
	"github.com/teleclaude/teleclaude/internal/orchestrator"
	"github.com/teleclaude/teleclaude/internal/registry"
	"github.com/teleclaude/teleclaude/internal/relay"
	"github.com/teleclaude/teleclaude/internal/todo"
	"github.com/teleclaude/teleclaude/internal/worktree"
)

// App is the daemon's container for every long-lived component.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	config     *config.Config

	eventBus        events.EventBus
	worktreeManager worktree.Manager
	bridge          bridge.Bridge
	registry        registry.Registry
	availability    *availability.Tracker
	relays          *relay.Manager
	todoEngine      *todo.Engine
	roadmapWatcher  *todo.RoadmapWatcher
	orchestrator    *orchestrator.Orchestrator
	apiServer       *api.Server

	dispatchCancel context.CancelFunc
	dispatchDone   chan struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds the command-line-derived overrides New accepts.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Debug      bool
	Version    string
}

// New loads configuration and builds the event bus, but defers
// constructing every other manager to Initialize so that a failed
// Initialize can be retried (e.g. after a worktree becomes available)
// without reloading config from scratch.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		done:       make(chan struct{}),
	}

	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	app.config = cfg

	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
	})

	return app, nil
}

// Initialize constructs every manager in dependency order: the worktree
// manager and bridge have no upstream dependencies, the registry needs
// the bridge, availability/relay/todo need the registry's peers, and the
// orchestrator and API server sit on top of everything else.
func (app *App) Initialize(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	cfg := app.config

	repoDir := cfg.Worktree.RepoDir
	if repoDir == "" {
		repoDir = cfg.Project.Root
	}
	app.worktreeManager = worktree.NewManager(worktree.NewRealGitExecutor(), app.eventBus, cfg.Worktree, repoDir)

	switch cfg.Bridge.Backend {
	case "", "tmux":
		app.bridge = bridge.NewTmuxBridge(bridge.NewRealTmuxExecutor(), cfg.Bridge.Shell, cfg.Bridge.ExitMarker)
	case "pty":
		app.bridge = bridge.NewPTYBridge(cfg.Bridge.Shell, cfg.Bridge.ExitMarker)
	default:
		return fmt.Errorf("unknown bridge backend %q", cfg.Bridge.Backend)
	}

	store := registry.NewStore(registryStorePath(repoDir))
	reg, err := registry.NewManager(app.bridge, app.eventBus, store)
	if err != nil {
		return fmt.Errorf("failed to build session registry: %w", err)
	}
	app.registry = reg

	app.availability = availability.NewTracker(cfg.Fallback, app.eventBus)

	app.relays = relay.NewManager(app.bridge, app.eventBus, relay.Config{
		BeatInterval:   config.ParseDuration(cfg.Relay.BeatInterval, 30*time.Second),
		RoundsPerPhase: cfg.Relay.RoundsPerPhase,
		HarvestTimeout: config.ParseDuration(cfg.Relay.HarvestTimeout, 5*time.Minute),
	})

	app.todoEngine = todo.NewEngine(repoDir, app.availability, app.worktreeManager, cfg.Todo.MaxReviewRounds)
	app.roadmapWatcher = todo.NewRoadmapWatcher(repoDir, app.eventBus)

	launcher := newAgentLauncher(app.bridge, cfg.Agents)
	app.orchestrator = orchestrator.New(app.todoEngine, app.registry, app.bridge, app.relays, app.availability, launcher, app.eventBus)

	app.apiServer = api.NewServer(api.ServerConfig{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		TLSCert: cfg.Server.TLSCert,
		TLSKey:  cfg.Server.TLSKey,
	}, api.Dependencies{
		Registry:        app.registry,
		Bridge:          app.bridge,
		Availability:    app.availability,
		Relays:          app.relays,
		TodoEngine:      app.todoEngine,
		WorktreeManager: app.worktreeManager,
		EventBus:        app.eventBus,
		Version:         app.version,
	})

	return nil
}

// registryStorePath returns the path to the session registry's
// persistence file, rooted under the repo so a restart recovers live
// sessions rather than orphaning their panes.
func registryStorePath(repoDir string) string {
	return repoDir + "/.teleclaude/sessions.json"
}

// Start begins the background loops: the roadmap watcher, the
// orchestrator's dispatch loop, and the API server.
func (app *App) Start(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	dispatchCtx, cancel := context.WithCancel(ctx)
	app.dispatchCancel = cancel
	app.dispatchDone = make(chan struct{})

	go func() {
		if err := app.roadmapWatcher.Run(dispatchCtx); err != nil && dispatchCtx.Err() == nil {
			log.Printf("roadmap watcher stopped: %v", err)
		}
	}()

	go app.runDispatchLoop(dispatchCtx)

	go func() {
		log.Printf("API server listening on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()

	return nil
}

// runDispatchLoop repeatedly asks the orchestrator to advance the next
// pending roadmap item (spec.md §4.7/§4.8), woken by todo.directive
// events and otherwise polling at a conservative interval so a manually
// edited roadmap.md is picked up even if fsnotify misses the edit.
func (app *App) runDispatchLoop(ctx context.Context) {
	defer close(app.dispatchDone)

	wakeCh := make(chan struct{}, 1)
	wake, err := app.eventBus.Subscribe(events.EventTodoDirective, func(_ context.Context, _ events.Event) error {
		select {
		case wakeCh <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		log.Printf("failed to subscribe dispatch loop to todo.directive: %v", err)
	} else {
		defer app.eventBus.Unsubscribe(wake)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wakeCh:
			app.dispatchOnce(ctx)
		case <-ticker.C:
			app.dispatchOnce(ctx)
		}
	}
}

func (app *App) dispatchOnce(ctx context.Context) {
	d := app.orchestrator.RunSlug(ctx, "")
	if d.Kind == todo.DirectiveError && d.ErrorCode != todo.ErrCodeNoWork {
		log.Printf("dispatch loop: %s", d)
	}
}

// Run is Initialize, then Start, then blocks until an OS signal, ctx
// cancellation, or an explicit Stop, at which point it shuts down.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				app.reload(ctx)
				continue
			}
			log.Printf("received signal %v, shutting down...", sig)
		case <-ctx.Done():
			log.Printf("context cancelled, shutting down...")
		case <-app.done:
			log.Printf("shutdown requested...")
		}
		break
	}

	return app.Shutdown(context.Background())
}

// reload implements spec.md §6.4's SIGHUP contract: re-read configuration
// from disk and reconcile the session registry against live panes,
// without tearing down the API server or the dispatch loop.
func (app *App) reload(ctx context.Context) {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("received SIGHUP, reloading configuration...")

	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(ctx, app.configPath)
	if err != nil {
		log.Printf("reload failed, keeping previous configuration: %v", err)
		return
	}
	app.config = cfg

	if err := app.registry.Reconcile(ctx); err != nil {
		log.Printf("reconcile on reload failed: %v", err)
	}
}

// Stop requests Run's wait loop to exit and shut down, without relying
// on signal delivery. Safe to call more than once.
func (app *App) Stop() {
	app.stopOnce.Do(func() { close(app.done) })
}

// Shutdown tears down every component in reverse dependency order: the
// API server first so no new work is accepted, then the dispatch loop,
// then the event bus.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down API server: %v", err)
		}
	}

	if app.dispatchCancel != nil {
		app.dispatchCancel()
		select {
		case <-app.dispatchDone:
		case <-shutdownCtx.Done():
		}
	}

	if app.eventBus != nil {
		if err := app.eventBus.Close(); err != nil {
			log.Printf("error closing event bus: %v", err)
		}
	}

	log.Println("shutdown complete")
	return nil
}

// Config returns the active configuration. Exposed for tests.
func (app *App) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config
}
