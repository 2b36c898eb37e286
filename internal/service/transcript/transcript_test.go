package transcript

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

var t0 = time.Date(2025, 3, 14, 9, 30, 15, 250*int(time.Millisecond), time.UTC)

func TestNewEntry(t *testing.T) {
	e := NewEntry("Alice", "hello there friend", t0)

	if e.Timestamp != "2025-03-14T09:30:15.250Z" {
		t.Errorf("unexpected timestamp %q", e.Timestamp)
	}
	if e.TimestampMs != t0.UnixMilli() {
		t.Errorf("expected %d, got %d", t0.UnixMilli(), e.TimestampMs)
	}
	if e.UpdatedAt != e.Timestamp {
		t.Errorf("expected updatedAt to match timestamp, got %q", e.UpdatedAt)
	}
}

func TestEffectiveMs(t *testing.T) {
	tests := []struct {
		name  string
		entry models.TranscriptEntry
		want  int64
	}{
		{"epoch field wins", models.TranscriptEntry{TimestampMs: 42, Timestamp: "garbage"}, 42},
		{"fallback parse", models.TranscriptEntry{Timestamp: "2025-03-14T09:30:15.250Z"}, t0.UnixMilli()},
		{"unparseable", models.TranscriptEntry{Timestamp: "10:30 AM"}, math.MinInt64},
		{"empty", models.TranscriptEntry{}, math.MinInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveMs(tt.entry); got != tt.want {
				t.Errorf("EffectiveMs = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGap(t *testing.T) {
	a := models.TranscriptEntry{TimestampMs: 1000}
	b := models.TranscriptEntry{TimestampMs: 1400}
	if got := Gap(a, b); got != 400 {
		t.Errorf("expected 400, got %d", got)
	}
	if got := Gap(b, a); got != 400 {
		t.Errorf("expected symmetric gap, got %d", got)
	}
	if got := Gap(a, models.TranscriptEntry{Timestamp: "bad"}); got != math.MaxInt64 {
		t.Errorf("expected max gap for unparseable entry, got %d", got)
	}
}

func TestTranscript_HasRecentExact(t *testing.T) {
	tr := New()
	tr.Append(NewEntry("Alice", "old sentence here", t0))
	for i := 0; i < ExactDuplicateWindow; i++ {
		tr.Append(NewEntry("Bob", fmt.Sprintf("filler sentence %d", i), t0))
	}

	if tr.HasRecentExact("Alice", "old sentence here", ExactDuplicateWindow) {
		t.Error("entry outside the window must not match")
	}
	if !tr.HasRecentExact("Bob", "filler sentence 9", ExactDuplicateWindow) {
		t.Error("expected match inside the window")
	}
	if tr.HasRecentExact("Alice", "filler sentence 9", ExactDuplicateWindow) {
		t.Error("speaker must match too")
	}
}

func TestTranscript_EntriesIsCopy(t *testing.T) {
	tr := New()
	tr.Append(NewEntry("Alice", "one two three", t0))

	entries := tr.Entries()
	entries[0].Text = "mutated"

	if tr.Entries()[0].Text != "one two three" {
		t.Error("Entries must not expose internal storage")
	}
}

func TestTranscript_ReplaceAndClear(t *testing.T) {
	tr := New()
	tr.Replace([]models.TranscriptEntry{{Speaker: "A"}, {Speaker: "B"}})
	if tr.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", tr.Len())
	}
	tr.Clear()
	if tr.Len() != 0 {
		t.Errorf("expected empty transcript, got %d", tr.Len())
	}
}
