// Package transcript holds the ordered list of finalized sentences.
package transcript

import (
	"math"
	"time"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

// TimestampLayout is the wall-clock format written into entries.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ExactDuplicateWindow is how many trailing entries are checked for an exact
// speaker and text repeat before appending.
const ExactDuplicateWindow = 10

// NewEntry builds an entry stamped at the given instant.
func NewEntry(speaker, text string, at time.Time) models.TranscriptEntry {
	stamp := FormatTimestamp(at)
	return models.TranscriptEntry{
		Speaker:     speaker,
		Text:        text,
		Timestamp:   stamp,
		TimestampMs: at.UnixMilli(),
		UpdatedAt:   stamp,
	}
}

// FormatTimestamp renders t in TimestampLayout, in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// EffectiveMs returns the entry's ordering key: TimestampMs when set,
// otherwise the parsed Timestamp. Unparseable entries rank lowest.
func EffectiveMs(e models.TranscriptEntry) int64 {
	if e.TimestampMs != 0 {
		return e.TimestampMs
	}
	if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
		return t.UnixMilli()
	}
	return math.MinInt64
}

// Gap returns the absolute distance in milliseconds between two entries.
// It is math.MaxInt64 when either timestamp is unusable.
func Gap(a, b models.TranscriptEntry) int64 {
	ma, mb := EffectiveMs(a), EffectiveMs(b)
	if ma == math.MinInt64 || mb == math.MinInt64 {
		return math.MaxInt64
	}
	if ma > mb {
		return ma - mb
	}
	return mb - ma
}

// Transcript is an ordered list of entries. Not safe for concurrent use.
type Transcript struct {
	entries []models.TranscriptEntry
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Len returns the number of entries.
func (t *Transcript) Len() int { return len(t.entries) }

// Entries returns a copy of the entries.
func (t *Transcript) Entries() []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Append adds an entry at the end.
func (t *Transcript) Append(e models.TranscriptEntry) {
	t.entries = append(t.entries, e)
}

// Replace swaps in a new list of entries.
func (t *Transcript) Replace(entries []models.TranscriptEntry) {
	t.entries = make([]models.TranscriptEntry, len(entries))
	copy(t.entries, entries)
}

// Clear removes every entry.
func (t *Transcript) Clear() {
	t.entries = nil
}

// HasRecentExact reports whether one of the last window entries has exactly
// this speaker and text.
func (t *Transcript) HasRecentExact(speaker, text string, window int) bool {
	start := max(len(t.entries)-window, 0)
	for _, e := range t.entries[start:] {
		if e.Speaker == speaker && e.Text == text {
			return true
		}
	}
	return false
}
