// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package adapter defines the chat-adapter port (spec.md §4.5, §6.3). Any
// concrete chat-platform integration — Telegram, Discord, whatever — is
// out of scope; this package specifies only the contract and implements
// the two delivery strategies (human tail-message vs. peer chunking)
// atop it.
package adapter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Port is the interface any chat-adapter implementation must satisfy
// (spec.md §6.3).
type Port interface {
	SendMessage(ctx context.Context, sessionID, text string) (string, error)
	EditMessage(ctx context.Context, sessionID, messageID, text string) error
	MaxMessageLength() int
	PeerPollInterval() time.Duration
}

// topicPattern classifies inbound topics per spec.md §6.3: topics matching
// "$A > $B - title" are peer (AI-to-AI) traffic.
var topicPattern = regexp.MustCompile(`^(\S+)\s*>\s*(\S+)\s*-\s*(.+)$`)

// Topic is a parsed inbound topic name.
type Topic struct {
	Initiator string
	Target    string
	Title     string
	IsPeer    bool
}

// ParseTopic classifies a topic string per the "$initiator > $target -
// title" convention.
func ParseTopic(name string) Topic {
	m := topicPattern.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return Topic{Title: name}
	}
	return Topic{Initiator: m[1], Target: m[2], Title: m[3], IsPeer: true}
}

// TailManager implements human mode: the poller's deltas are coalesced
// into a single bounded-length "tail" message, edited in place, with
// top-truncation plus a link to the full transcript once truncation
// occurs.
type TailManager struct {
	port         Port
	maxLen       int
	sessionID    string
	messageID    string
	text         string
	transcriptFn func() string // returns a link to the full transcript, lazily
	truncated    bool
}

// NewTailManager builds a tail manager for one session. maxLen defaults
// to ~3,400 chars per spec.md §4.5 if zero.
func NewTailManager(port Port, sessionID string, maxLen int, transcriptLink func() string) *TailManager {
	if maxLen <= 0 {
		maxLen = 3400
	}
	return &TailManager{port: port, sessionID: sessionID, maxLen: maxLen, transcriptFn: transcriptLink}
}

// Append folds a new delta into the tail, truncating from the top and
// sending or editing the message as needed.
func (t *TailManager) Append(ctx context.Context, delta string) error {
	t.text += delta

	display := t.text
	if len(display) > t.maxLen {
		t.truncated = true
		keep := t.maxLen
		display = display[len(display)-keep:]
	}
	if t.truncated && t.transcriptFn != nil {
		display = fmt.Sprintf("(truncated — full transcript: %s)\n%s", t.transcriptFn(), display)
	}

	if t.messageID == "" {
		id, err := t.port.SendMessage(ctx, t.sessionID, display)
		if err != nil {
			return err
		}
		t.messageID = id
		return nil
	}
	return t.port.EditMessage(ctx, t.sessionID, t.messageID, display)
}

// PeerChunker implements peer mode: each delta becomes a new sequential
// message, chunked to the adapter's max length with "[Chunk k/n]"
// markers, and a terminal "[Output Complete]" message on session exit.
// No data loss — unlike TailManager, nothing here is ever dropped by
// truncation.
type PeerChunker struct {
	port      Port
	sessionID string
}

// NewPeerChunker builds a chunker for one session.
func NewPeerChunker(port Port, sessionID string) *PeerChunker {
	return &PeerChunker{port: port, sessionID: sessionID}
}

// Send chunks text to the adapter's max message length and sends each
// chunk as its own message.
func (c *PeerChunker) Send(ctx context.Context, text string) error {
	maxLen := c.port.MaxMessageLength()
	if maxLen <= 0 {
		maxLen = 4096
	}

	chunks := chunk(text, maxLen-64) // leave room for the "[Chunk k/n]" marker
	for i, ch := range chunks {
		marker := ""
		if len(chunks) > 1 {
			marker = fmt.Sprintf("[Chunk %d/%d]\n", i+1, len(chunks))
		}
		if _, err := c.port.SendMessage(ctx, c.sessionID, marker+ch); err != nil {
			return err
		}
	}
	return nil
}

// Complete sends the terminal "[Output Complete]" message when the
// session's poller reports exit.
func (c *PeerChunker) Complete(ctx context.Context) error {
	_, err := c.port.SendMessage(ctx, c.sessionID, "[Output Complete]")
	return err
}

func chunk(text string, size int) []string {
	if size <= 0 {
		size = 1
	}
	if len(text) == 0 {
		return []string{""}
	}
	var chunks []string
	for len(text) > 0 {
		n := size
		if n > len(text) {
			n = len(text)
		}
		chunks = append(chunks, text[:n])
		text = text[n:]
	}
	return chunks
}
