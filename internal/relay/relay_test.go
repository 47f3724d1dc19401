// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleclaude/teleclaude/internal/bridge"
	"github.com/teleclaude/teleclaude/internal/events"
)

type recordingBridge struct {
	mu  sync.Mutex
	log []string // "target: text"
}

func (b *recordingBridge) CreatePane(ctx context.Context, name, shell, cwd string) (bridge.Handle, error) {
	return bridge.Handle{}, nil
}
func (b *recordingBridge) Destroy(ctx context.Context, handle bridge.Handle) error { return nil }
func (b *recordingBridge) ExitMarker() string                                      { return "__TELECLAUDE_DONE_$?__" }
func (b *recordingBridge) Capture(ctx context.Context, handle bridge.Handle) (string, error) {
	return "", nil
}

func (b *recordingBridge) SendInput(ctx context.Context, handle bridge.Handle, text string, appendExitMarker bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, handle.Target()+": "+text)
	return nil
}

func (b *recordingBridge) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.log))
	copy(out, b.log)
	return out
}

func TestEstablishDirectIsIdempotent(t *testing.T) {
	br := &recordingBridge{}
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 10})
	mgr := NewManager(br, bus, Config{})

	a := Participant{SessionID: "s1", TerminalHandle: "teleclaude:a", DisplayName: "reviewer"}
	b := Participant{SessionID: "s2", TerminalHandle: "teleclaude:b", DisplayName: "fixer"}

	r1, err := mgr.EstablishDirect(context.Background(), a, b)
	require.NoError(t, err)

	r2, err := mgr.EstablishDirect(context.Background(), a, b)
	require.NoError(t, err)

	assert.Equal(t, r1.ID, r2.ID, "second EstablishDirect must not create a new relay")
}

func TestEstablishDirectIsOrderIndependent(t *testing.T) {
	br := &recordingBridge{}
	mgr := NewManager(br, nil, Config{})

	a := Participant{SessionID: "s1", TerminalHandle: "teleclaude:a", DisplayName: "reviewer"}
	b := Participant{SessionID: "s2", TerminalHandle: "teleclaude:b", DisplayName: "fixer"}

	r1, err := mgr.EstablishDirect(context.Background(), a, b)
	require.NoError(t, err)

	r2, err := mgr.EstablishDirect(context.Background(), b, a)
	require.NoError(t, err)

	assert.Equal(t, r1.ID, r2.ID)
}

func TestDispatchFansOutToOtherParticipant(t *testing.T) {
	br := &recordingBridge{}
	mgr := NewManager(br, nil, Config{})

	a := Participant{SessionID: "s1", TerminalHandle: "teleclaude:a", DisplayName: "reviewer"}
	b := Participant{SessionID: "s2", TerminalHandle: "teleclaude:b", DisplayName: "fixer"}
	r, err := mgr.EstablishDirect(context.Background(), a, b)
	require.NoError(t, err)

	require.NoError(t, r.Dispatch(context.Background(), "s1", "please fix the nil check"))

	sent := br.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "teleclaude:b")
	assert.Contains(t, sent[0], "please fix the nil check")
	assert.Contains(t, sent[0], "reviewer")
}

func TestGatheringSuppressesNonTalkingPieceOutput(t *testing.T) {
	br := &recordingBridge{}
	mgr := NewManager(br, nil, Config{})

	participants := []Participant{
		{SessionID: "h", TerminalHandle: "teleclaude:h", DisplayName: "harvester", Role: ParticipantHarvester},
		{SessionID: "s1", TerminalHandle: "teleclaude:s1", DisplayName: "speaker-1", Role: ParticipantSpeaker},
		{SessionID: "s2", TerminalHandle: "teleclaude:s2", DisplayName: "speaker-2", Role: ParticipantSpeaker},
	}
	r, err := mgr.StartGathering(context.Background(), participants)
	require.NoError(t, err)

	// talkingPiece starts at ordinal 0 (harvester) then advances past
	// harvester to the first speaker in advanceTalkingPieceLocked, but
	// initial state is whatever StartGathering set — ordinal 0 is the
	// harvester, so speaker-2 (not current holder) must be suppressed.
	require.NoError(t, r.Dispatch(context.Background(), "s2", "unsolicited output"))
	assert.Empty(t, br.sent(), "non-talking-piece output must not fan out")
}

func TestStartGatheringRequiresExactlyOneHarvester(t *testing.T) {
	br := &recordingBridge{}
	mgr := NewManager(br, nil, Config{})

	_, err := mgr.StartGathering(context.Background(), []Participant{
		{SessionID: "a", Role: ParticipantSpeaker},
		{SessionID: "b", Role: ParticipantSpeaker},
	})
	assert.Error(t, err)
}

func TestStartGatheringRejectsParticipantAlreadyInActiveRelay(t *testing.T) {
	br := &recordingBridge{}
	mgr := NewManager(br, nil, Config{})

	a := Participant{SessionID: "s1", TerminalHandle: "teleclaude:a"}
	b := Participant{SessionID: "s2", TerminalHandle: "teleclaude:b"}
	_, err := mgr.EstablishDirect(context.Background(), a, b)
	require.NoError(t, err)

	_, err = mgr.StartGathering(context.Background(), []Participant{
		{SessionID: "s1", Role: ParticipantHarvester},
		{SessionID: "s3", Role: ParticipantSpeaker},
	})
	assert.Error(t, err, "a session already in an active relay must not be allowed into a gathering")
}

func TestEndDeactivatesRelay(t *testing.T) {
	br := &recordingBridge{}
	mgr := NewManager(br, nil, Config{})

	a := Participant{SessionID: "s1", TerminalHandle: "teleclaude:a"}
	b := Participant{SessionID: "s2", TerminalHandle: "teleclaude:b"}
	r, err := mgr.EstablishDirect(context.Background(), a, b)
	require.NoError(t, err)

	require.NoError(t, mgr.End(context.Background(), r.ID))
	require.NoError(t, r.Dispatch(context.Background(), "s1", "should be dropped"))
	assert.Empty(t, br.sent(), "dispatch on an ended relay must be a no-op")
}
