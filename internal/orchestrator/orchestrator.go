// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator is the stateful operator of spec.md §4.8: it calls
// the todo state machine, spawns sessions for its ToolCall directives,
// waits for completion, and runs each command's POST_COMPLETION recipe
// before looping back to the state machine.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/teleclaude/teleclaude/internal/availability"
	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/events"
	"github.com/teleclaude/teleclaude/internal/kernel"
	"github.com/teleclaude/teleclaude/internal/poller"
	"github.com/teleclaude/teleclaude/internal/registry"
	"github.com/teleclaude/teleclaude/internal/relay"
	"github.com/teleclaude/teleclaude/internal/todo"
)

// AgentLauncher starts the shell command for an agent_kind inside a
// freshly created session's pane, seeding its initial prompt.
type AgentLauncher interface {
	Launch(ctx context.Context, sess *registry.Session, directive todo.Directive) error
}

// Orchestrator drives one work item's prepare→build→review→finalize
// lifecycle at a time, per spec.md §5 ("typically one at a time
// system-wide, but the state machine is re-entrant-safe across disjoint
// slugs").
type Orchestrator struct {
	engine   *todo.Engine
	registry registry.Registry
	bridge   bridge.Bridge
	relays   *relay.Manager
	avail    *availability.Tracker
	launcher AgentLauncher
	bus      events.EventBus

	completionTimeout time.Duration

	mu      sync.Mutex
	signals map[string]string // signal session id -> cause; held in memory only, state.yaml:signal is not written
}

// New builds an Orchestrator.
func New(engine *todo.Engine, reg registry.Registry, br bridge.Bridge, relays *relay.Manager, avail *availability.Tracker, launcher AgentLauncher, bus events.EventBus) *Orchestrator {
	return &Orchestrator{
		engine:            engine,
		registry:          reg,
		bridge:            br,
		relays:            relays,
		avail:             avail,
		launcher:          launcher,
		bus:               bus,
		completionTimeout: 30 * time.Minute,
		signals:           make(map[string]string),
	}
}

// RunSlug drives next_prepare then repeated next_work calls for one slug
// until a terminal Directive (CompleteOK or a non-recoverable Error).
func (o *Orchestrator) RunSlug(ctx context.Context, slug string) todo.Directive {
	prep := o.engine.NextPrepare(ctx, slug)
	if prep.Kind == todo.DirectiveToolCall {
		if d := o.dispatchAndRecipe(ctx, prep); d.Kind == todo.DirectiveError {
			return d
		}
	} else if prep.Kind == todo.DirectiveError {
		return prep
	}

	resolvedSlug := prep.Slug
	if resolvedSlug == "" {
		resolvedSlug = slug
	}

	for {
		d := o.engine.NextWork(ctx, resolvedSlug)
		switch d.Kind {
		case todo.DirectiveCompleteOK:
			return d
		case todo.DirectiveError:
			return d
		case todo.DirectiveToolCall:
			if result := o.dispatchAndRecipe(ctx, d); result.Kind == todo.DirectiveError {
				return result
			}
		default:
			return d
		}
	}
}

// dispatchAndRecipe spawns the session named by a ToolCall directive,
// waits for completion, and runs its POST_COMPLETION recipe. Returns an
// Error directive only on a hard failure; POST_COMPLETION recipes that
// decide to "loop" return a zero-value success Directive.
func (o *Orchestrator) dispatchAndRecipe(ctx context.Context, d todo.Directive) todo.Directive {
	sess, err := o.spawn(ctx, d)
	if err != nil {
		return errDirective(kernel.KindOf(err), err.Error())
	}

	switch d.Command {
	case "next-review":
		return o.recipeNextReview(ctx, sess, d)
	case "next-finalize":
		return o.recipeNextFinalize(ctx, sess, d)
	default:
		return o.recipeDefault(ctx, sess, d)
	}
}

func (o *Orchestrator) spawn(ctx context.Context, d todo.Directive) (*registry.Session, error) {
	role := roleForCommand(d.Command)
	spec := registry.Spec{
		AgentKind:   registry.ParseAgentKind(d.Agent),
		Role:        role,
		ProjectPath: d.Project,
		Subfolder:   d.Subfolder,
	}
	sess, err := o.registry.Create(ctx, spec)
	if err != nil {
		return nil, err
	}
	if o.launcher != nil {
		if err := o.launcher.Launch(ctx, sess, d); err != nil {
			_ = o.registry.Close(ctx, sess.ID, "launch_failed")
			return nil, err
		}
	}
	return sess, nil
}

// recipeDefault is the generic POST_COMPLETION recipe shared by
// next-prepare, next-build, commit-pending, and next-fix-review without a
// live reviewer: wait for ExitedNormally, end the session, loop.
func (o *Orchestrator) recipeDefault(ctx context.Context, sess *registry.Session, d todo.Directive) todo.Directive {
	if err := o.waitForExit(ctx, sess); err != nil {
		o.signal(ctx, sess, err)
		return todo.Directive{}
	}
	_ = o.registry.Close(ctx, sess.ID, "post_completion")
	return todo.Directive{}
}

// recipeNextReview implements spec.md §4.8's detailed recipe: on
// REQUEST CHANGES, establish a direct peer link between reviewer and a
// freshly dispatched fixer rather than ending the reviewer, and loop the
// fix/re-review cycle until the reviewer approves or the round limit
// closes the todo.
func (o *Orchestrator) recipeNextReview(ctx context.Context, reviewer *registry.Session, d todo.Directive) todo.Directive {
	if err := o.waitForExit(ctx, reviewer); err != nil {
		o.signal(ctx, reviewer, err)
		return todo.Directive{}
	}

	verdict, err := todo.ParseVerdict(reviewPath(d))
	if err != nil {
		return errDirective(kernel.KindConfigInvalid, err.Error())
	}
	if verdict == todo.VerdictApprove {
		_ = o.registry.Close(ctx, reviewer.ID, "approved")
		return todo.Directive{}
	}

	// REQUEST CHANGES: reviewer stays alive as a live peer.
	fixDirective := o.engine.NextWork(ctx, d.Args)
	if fixDirective.Kind != todo.DirectiveToolCall || fixDirective.Command != "next-fix-review" {
		// Reviewer died or state moved on between review and fix: fall
		// back to the state machine's own default recommendation.
		_ = o.registry.Close(ctx, reviewer.ID, "reviewer_unavailable")
		return fixDirective
	}

	fixer, err := o.spawn(ctx, fixDirective)
	if err != nil {
		_ = o.registry.Close(ctx, reviewer.ID, "fixer_spawn_failed")
		return errDirective(kernel.KindOf(err), err.Error())
	}

	reviewerParticipant := relay.Participant{SessionID: reviewer.ID, TerminalHandle: reviewer.TerminalHandle, DisplayName: "reviewer"}
	fixerParticipant := relay.Participant{SessionID: fixer.ID, TerminalHandle: fixer.TerminalHandle, DisplayName: "fixer"}
	if o.relays != nil {
		if _, err := o.relays.EstablishDirect(ctx, reviewerParticipant, fixerParticipant); err != nil {
			log.Printf("orchestrator: direct peer link failed for %s/%s: %v", reviewer.ID, fixer.ID, err)
		}
	}

	if err := o.waitForExit(ctx, fixer); err != nil {
		o.signal(ctx, fixer, err)
		return todo.Directive{}
	}
	_ = o.registry.Close(ctx, fixer.ID, "fix_applied")

	// Re-read the verdict: the reviewer, not the fixer, writes it.
	verdict, err = todo.ParseVerdict(reviewPath(d))
	if err != nil {
		return errDirective(kernel.KindConfigInvalid, err.Error())
	}
	if verdict == todo.VerdictApprove {
		_ = o.registry.Close(ctx, reviewer.ID, "approved")
		return todo.Directive{}
	}

	st, _, _ := todo.LoadState(d.Project, d.Args)
	st.ReviewRound++
	_ = todo.SaveState(d.Project, d.Args, st)
	if st.ReviewRound >= o.engine.MaxReviewRounds {
		_ = o.registry.Close(ctx, reviewer.ID, "review_round_limit")
		return todo.Directive{}
	}
	// Still REQUEST CHANGES and under the limit: next RunSlug iteration
	// will re-enter next_work, which dispatches the next fix round.
	return todo.Directive{}
}

// recipeNextFinalize always dispatches with subfolder="" (main repo). On
// completion, verify the archive path exists, end the session, and loop
// — the next next_work call will see CompleteOK.
func (o *Orchestrator) recipeNextFinalize(ctx context.Context, sess *registry.Session, d todo.Directive) todo.Directive {
	if err := o.waitForExit(ctx, sess); err != nil {
		o.signal(ctx, sess, err)
		return todo.Directive{}
	}
	if _, found := doneDirExists(d.Project, d.Args); !found {
		return errDirective(kernel.KindConfigInvalid, "next-finalize completed but no done/ archive was produced")
	}
	_ = o.registry.Close(ctx, sess.ID, "finalized")
	return todo.Directive{}
}

// waitForExit runs a poller (spec.md §4.2) over the session's pane until
// it reports ExitedNormally, ExitedAbnormally, or the completion timeout
// elapses. Every OutputChanged/IdleDetected sample is republished onto
// the event bus as the corresponding session event, so anything watching
// (the /stream handler, a chat delivery pump) sees the same sequence the
// orchestrator itself is driven by. Abnormal exit and timeout both
// surface as an error so the caller can keep the session alive as a
// signal rather than closing it.
func (o *Orchestrator) waitForExit(ctx context.Context, sess *registry.Session) error {
	waitCtx, cancel := context.WithTimeout(ctx, o.completionTimeout)
	defer cancel()

	cfg := poller.DefaultConfig()
	cfg.ExitMarker = o.bridge.ExitMarker()
	sessionEvents := poller.New(o.bridge, bridgeHandle(sess), cfg).Run(waitCtx)

	for ev := range sessionEvents {
		switch ev.Kind {
		case poller.EventOutputChanged:
			o.publish(ctx, eventsSessionOutputChanged, sess.ID, map[string]interface{}{"text_delta": ev.TextDelta})
		case poller.EventIdleDetected:
			o.publish(ctx, eventsSessionIdle, sess.ID, nil)
		case poller.EventExitedNormally:
			o.publish(ctx, eventsSessionExitedNormally, sess.ID, nil)
			return nil
		case poller.EventExitedAbnormally:
			o.publish(ctx, eventsSessionExitedAbnormally, sess.ID, map[string]interface{}{"reason": ev.Reason})
			return kernel.New(kernel.KindPaneLost, "session exited abnormally: "+ev.Reason).WithSession(sess.ID)
		}
	}
	return kernel.New(kernel.KindSessionSpawnFailed, "wait_for_completion timed out").WithSession(sess.ID)
}

// eventsSessionOutputChanged etc. are short local aliases for the event
// bus's session event-type constants, used by waitForExit/publish below.
const (
	eventsSessionOutputChanged    = events.EventSessionOutputChanged
	eventsSessionIdle             = events.EventSessionIdle
	eventsSessionExitedNormally   = events.EventSessionExitedNormally
	eventsSessionExitedAbnormally = events.EventSessionExitedAbnormally
)

func (o *Orchestrator) publish(ctx context.Context, eventType, sessionID string, payload map[string]interface{}) {
	if o.bus == nil {
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["session_id"] = sessionID
	_ = o.bus.Publish(ctx, events.Event{Type: eventType, Payload: payload})
}

// signal keeps a session alive as a visible flag for human attention
// (spec.md §4.8 Signal sessions) rather than ending it, and records its
// ID and the cause in o.signals. The record is kept in memory only;
// state.yaml:signal is not written.
func (o *Orchestrator) signal(ctx context.Context, sess *registry.Session, cause error) {
	o.mu.Lock()
	o.signals[sess.ID] = cause.Error()
	o.mu.Unlock()
	log.Printf("orchestrator: session %s became a signal session: %v", sess.ID, cause)
	if o.bus != nil {
		o.bus.Publish(ctx, events.Event{
			Type:    events.EventNotifyError,
			Payload: map[string]interface{}{"session_id": sess.ID, "reason": cause.Error()},
		})
	}
}

func errDirective(kind kernel.Kind, message string) todo.Directive {
	return todo.Directive{Kind: todo.DirectiveError, ErrorCode: todoErrorCode(kind), Message: fmt.Sprintf("%s: %s", kind, message)}
}

// todoErrorCode maps a kernel.Kind onto the todo package's narrower
// ErrorCode enum, for the kernel-level failures (session spawn, pane
// loss) that the state machine itself never produces but the
// orchestrator must still report through the same Directive shape.
func todoErrorCode(kind kernel.Kind) todo.ErrorCode {
	switch kind {
	case kernel.KindNoWork:
		return todo.ErrCodeNoWork
	case kernel.KindNotPrepared:
		return todo.ErrCodeNotPrepared
	case kernel.KindAmbiguousVerdict:
		return todo.ErrCodeAmbiguousVerdict
	case kernel.KindBuildGateFailed:
		return todo.ErrCodeBuildGate
	default:
		return todo.ErrCodeVerify
	}
}

// reviewPath returns the path to a work item's review-findings.md.
func reviewPath(d todo.Directive) string {
	return filepath.Join(d.Project, "todos", d.Args, "review-findings.md")
}

// doneDirExists mirrors the todo package's own done/{n}-{slug}/ glob
// (its anyDoneDirFor helper is unexported), used here only to verify
// next-finalize actually produced an archive.
func doneDirExists(workingDir, slug string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(workingDir, "done", "*-"+slug))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// handleFromTarget splits a registry session's "session:window" terminal
// handle back into a bridge.Handle, mirroring the same small helper kept
// privately in both the registry and relay packages.
func handleFromTarget(target string) bridge.Handle {
	parts := strings.SplitN(target, ":", 2)
	if len(parts) != 2 {
		return bridge.Handle{Session: target}
	}
	return bridge.Handle{Session: parts[0], Window: parts[1]}
}

func roleForCommand(command string) registry.Role {
	switch command {
	case "next-prepare":
		return registry.RoleArchitect
	case "next-build", "commit-pending":
		return registry.RoleBuilder
	case "next-review":
		return registry.RoleReviewer
	case "next-fix-review":
		return registry.RoleFixer
	case "next-finalize":
		return registry.RoleFinalizer
	default:
		return registry.RoleUnknown
	}
}

func bridgeHandle(sess *registry.Session) bridge.Handle {
	return handleFromTarget(sess.TerminalHandle)
}

// exitMarkerNeedle is the sentinel this package's own tests configure
// their fake bridges to report; production bridges supply their own via
// Bridge.ExitMarker().
const exitMarkerNeedle = "[TELECLAUDE_EXIT]"
