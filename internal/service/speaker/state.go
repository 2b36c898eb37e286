// Package speaker holds the per-speaker sentence buffer and its state machine.
package speaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/clock"
)

// RecentCapacity is the number of finalized sentences remembered per speaker.
const RecentCapacity = 5

// State represents the lifecycle state of a speaker buffer.
type State int

const (
	// StateIdle - No text buffered and no deadline armed.
	StateIdle State = iota
	// StateBuffering - Text buffered, deadline armed (or lost and awaiting the sweep).
	StateBuffering
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBuffering:
		return "BUFFERING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid state transitions.
var (
	ErrEmptyText        = errors.New("speaker: empty text")
	ErrAlreadyBuffering = errors.New("speaker: buffer already holds text")
	ErrNotBuffering     = errors.New("speaker: buffer is idle")
)

// Buffer is the in-progress sentence of one speaker.
// Not safe for concurrent use; the engine serializes all access.
//
// State transitions:
//
//	IDLE ──Begin()──→ BUFFERING ──Take()──→ IDLE
//	                    │   ↑
//	                    └───┘ Replace() / Append() / Touch()
//
// Invariant: text is empty exactly when the buffer is IDLE, and a deadline is
// only ever armed while BUFFERING.
type Buffer struct {
	speaker    string
	state      State
	text       string
	lastUpdate time.Time
	deadline   clock.Timer
	generation uint64
	recent     *Ring
}

// NewBuffer creates an idle buffer for speaker.
func NewBuffer(speaker string) *Buffer {
	return &Buffer{
		speaker: speaker,
		state:   StateIdle,
		recent:  NewRing(RecentCapacity),
	}
}

// Speaker returns the speaker label.
func (b *Buffer) Speaker() string { return b.speaker }

// State returns the current state.
func (b *Buffer) State() State { return b.state }

// Text returns the buffered text, empty when idle.
func (b *Buffer) Text() string { return b.text }

// LastUpdate returns when the buffer last saw a fragment.
func (b *Buffer) LastUpdate() time.Time { return b.lastUpdate }

// Recent returns the recently finalized sentences, oldest first.
func (b *Buffer) Recent() []string { return b.recent.Items() }

// Armed reports whether a deadline is currently scheduled.
func (b *Buffer) Armed() bool { return b.deadline != nil }

// Begin starts a new sentence.
func (b *Buffer) Begin(text string, now time.Time) error {
	if text == "" {
		return ErrEmptyText
	}
	if b.state != StateIdle {
		return ErrAlreadyBuffering
	}
	b.state = StateBuffering
	b.text = text
	b.lastUpdate = now
	return nil
}

// Replace swaps the buffered text for a revised version.
func (b *Buffer) Replace(text string, now time.Time) error {
	if text == "" {
		return ErrEmptyText
	}
	if b.state != StateBuffering {
		return ErrNotBuffering
	}
	b.text = text
	b.lastUpdate = now
	return nil
}

// Append joins more text onto the buffered sentence with a single space.
func (b *Buffer) Append(text string, now time.Time) error {
	if text == "" {
		return ErrEmptyText
	}
	if b.state != StateBuffering {
		return ErrNotBuffering
	}
	b.text = b.text + " " + text
	b.lastUpdate = now
	return nil
}

// Touch records activity without changing the text.
func (b *Buffer) Touch(now time.Time) {
	b.lastUpdate = now
}

// Arm installs a new deadline tagged with generation, stopping any previous
// one first.
func (b *Buffer) Arm(t clock.Timer, generation uint64) {
	b.Disarm()
	b.deadline = t
	b.generation = generation
}

// Disarm stops the pending deadline and invalidates its generation so a
// callback already in flight is recognized as stale.
func (b *Buffer) Disarm() {
	if b.deadline != nil {
		b.deadline.Stop()
		b.deadline = nil
	}
	b.generation = 0
}

// IsCurrent reports whether generation belongs to the armed deadline.
func (b *Buffer) IsCurrent(generation uint64) bool {
	return b.deadline != nil && generation != 0 && b.generation == generation
}

// Take ends the sentence: it disarms the deadline, remembers the text as a
// recent sentence and returns the buffer to IDLE. It returns false when the
// buffer was already idle.
func (b *Buffer) Take() (string, bool) {
	if b.state != StateBuffering {
		return "", false
	}
	text := b.text
	b.Disarm()
	b.recent.Push(text)
	b.text = ""
	b.state = StateIdle
	return text, true
}

// Reset drops everything, including the recent sentences.
func (b *Buffer) Reset() {
	b.Disarm()
	b.text = ""
	b.state = StateIdle
	b.lastUpdate = time.Time{}
	b.recent.Clear()
}
