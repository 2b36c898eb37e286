// Package models defines the data structures shared by the engine, its
// sources and its sinks.
package models

import "time"

// Fragment is one observation of a speaker's current caption text.
// Each fragment carries the full text shown so far, not a delta.
type Fragment struct {
	Speaker     string    `json:"speaker" validate:"max=256"`
	Text        string    `json:"text" validate:"required,max=4096"`
	ArrivalTime time.Time `json:"arrivalTime,omitempty"`
}

// TranscriptEntry is one finalized sentence.
type TranscriptEntry struct {
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
	TimestampMs int64  `json:"timestampMs"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// State is the engine's externally visible state. It doubles as the
// persisted snapshot layout.
type State struct {
	IsRecording      bool              `json:"isRecording"`
	Transcript       []TranscriptEntry `json:"transcript"`
	MeetingID        string            `json:"meetingId"`
	MeetingStartTime *string           `json:"meetingStartTime"`
}
