// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package kernel holds the error taxonomy, timeouts, and inter-task
// signalling shared across the orchestration kernel (bridge, poller,
// registry, relay, availability, todo, orchestrator).
package kernel

import (
	"errors"
	"fmt"
)

// Kind identifies a class of kernel error (spec.md §7). Kind is the thing
// callers switch on; the wrapped error carries the human-readable detail.
type Kind int

const (
	KindUnknown Kind = iota

	// Bridge kinds. Session is tombstoned; orchestrator surfaces via signal session.
	KindSessionSpawnFailed
	KindPaneLost
	KindMultiplexerUnavailable

	// Adapter-port kinds. Poller events buffer; repeated failures past a
	// threshold trigger mark_unavailable on the associated agent if correlated.
	KindAdapterUnavailable
	KindAdapterRateLimited

	// Todo state-machine kinds. Returned as Error{code}; orchestrator
	// surfaces and stops iterating on that slug.
	KindNoWork
	KindNotPrepared
	KindAmbiguousVerdict
	KindBuildGateFailed
	KindVerifyFailed

	// Closure-policy kind (§4.8).
	KindReviewRoundLimitExceeded

	// Config kind. Fatal at startup; daemon refuses to start.
	KindConfigInvalid
)

func (k Kind) String() string {
	switch k {
	case KindSessionSpawnFailed:
		return "SessionSpawnFailed"
	case KindPaneLost:
		return "PaneLost"
	case KindMultiplexerUnavailable:
		return "MultiplexerUnavailable"
	case KindAdapterUnavailable:
		return "AdapterUnavailable"
	case KindAdapterRateLimited:
		return "AdapterRateLimited"
	case KindNoWork:
		return "NoWork"
	case KindNotPrepared:
		return "NotPrepared"
	case KindAmbiguousVerdict:
		return "AmbiguousVerdict"
	case KindBuildGateFailed:
		return "BuildGateFailed"
	case KindVerifyFailed:
		return "VerifyFailed"
	case KindReviewRoundLimitExceeded:
		return "ReviewRoundLimitExceeded"
	case KindConfigInvalid:
		return "ConfigInvalid"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the kind as its string name, matching the
// int-enum-with-string-name idiom used throughout this codebase.
func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Recoverable reports whether this kind is handled by local retry/backoff
// (§7 Propagation) rather than surfacing to the orchestrator.
func (k Kind) Recoverable() bool {
	switch k {
	case KindMultiplexerUnavailable, KindAdapterUnavailable, KindAdapterRateLimited:
		return true
	default:
		return false
	}
}

// Fatal reports whether this kind stops the daemon outright.
func (k Kind) Fatal() bool {
	return k == KindConfigInvalid
}

// Error is a typed kernel error: a Kind plus context and an optional
// wrapped cause.
type Error struct {
	Kind    Kind
	Slug    string // work-item slug, when applicable
	Session string // session ID, when applicable
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Slug != "" && e.Session != "":
		where = fmt.Sprintf(" (slug=%s session=%s)", e.Slug, e.Session)
	case e.Slug != "":
		where = fmt.Sprintf(" (slug=%s)", e.Slug)
	case e.Session != "":
		where = fmt.Sprintf(" (session=%s)", e.Session)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s%s: %v", e.Kind, e.Message, where, e.Cause)
	}
	return fmt.Sprintf("%s: %s%s", e.Kind, e.Message, where)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a bare kernel error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a kernel error around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithSlug attaches a work-item slug for reporting.
func (e *Error) WithSlug(slug string) *Error {
	e.Slug = slug
	return e
}

// WithSession attaches a session ID for reporting.
func (e *Error) WithSession(session string) *Error {
	e.Session = session
	return e
}

// KindOf extracts the Kind from an error, if it (or something it wraps)
// is a *Error. Returns KindUnknown otherwise.
func KindOf(err error) Kind {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	return KindUnknown
}
