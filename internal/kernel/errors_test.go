// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindSessionSpawnFailed, "SessionSpawnFailed"},
		{KindPaneLost, "PaneLost"},
		{KindMultiplexerUnavailable, "MultiplexerUnavailable"},
		{KindAdapterUnavailable, "AdapterUnavailable"},
		{KindAdapterRateLimited, "AdapterRateLimited"},
		{KindNoWork, "NoWork"},
		{KindNotPrepared, "NotPrepared"},
		{KindAmbiguousVerdict, "AmbiguousVerdict"},
		{KindBuildGateFailed, "BuildGateFailed"},
		{KindVerifyFailed, "VerifyFailed"},
		{KindReviewRoundLimitExceeded, "ReviewRoundLimitExceeded"},
		{KindConfigInvalid, "ConfigInvalid"},
		{Kind(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestKindMarshalJSON(t *testing.T) {
	b, err := KindPaneLost.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"PaneLost"`, string(b))
}

func TestKindRecoverable(t *testing.T) {
	assert.True(t, KindMultiplexerUnavailable.Recoverable())
	assert.True(t, KindAdapterUnavailable.Recoverable())
	assert.True(t, KindAdapterRateLimited.Recoverable())
	assert.False(t, KindSessionSpawnFailed.Recoverable())
	assert.False(t, KindConfigInvalid.Recoverable())
}

func TestKindFatal(t *testing.T) {
	assert.True(t, KindConfigInvalid.Fatal())
	assert.False(t, KindNoWork.Fatal())
}

func TestErrorMessage(t *testing.T) {
	err := New(KindNoWork, "no pending work items").WithSlug("add-auth")
	assert.Equal(t, "NoWork: no pending work items (slug=add-auth)", err.Error())

	cause := errors.New("boom")
	wrapped := Wrap(KindPaneLost, "capture failed", cause).WithSession("sess-1")
	assert.Contains(t, wrapped.Error(), "PaneLost")
	assert.Contains(t, wrapped.Error(), "session=sess-1")
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(KindVerifyFailed, "verify_artifacts failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	kerr := New(KindBuildGateFailed, "go build failed")
	wrapped := fmt.Errorf("dispatch: %w", kerr)

	assert.Equal(t, KindBuildGateFailed, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}
