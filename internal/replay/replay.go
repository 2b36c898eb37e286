// Package replay drives an engine from a recorded caption log on a manual
// clock, so a session can be reproduced exactly and inspected offline.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/clock"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/engine"
)

// Event is one line of a replay log: the caption text shown for speaker
// OffsetMs after recording started.
type Event struct {
	OffsetMs int64  `json:"offsetMs"`
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
}

// Parse reads JSON Lines. Blank lines and lines starting with '#' are
// skipped.
func Parse(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ev.OffsetMs < 0 {
			return nil, fmt.Errorf("line %d: negative offsetMs %d", line, ev.OffsetMs)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Options configures a replay run.
type Options struct {
	// Start is the wall-clock instant recording starts. Zero means the Unix
	// epoch, which keeps output stable across runs.
	Start time.Time
	// Engine carries the timing contracts; zero values use the defaults.
	Engine engine.Config
	// Settle is how long the clock keeps running after the last event
	// before recording stops. Zero means one consolidation interval plus one
	// buffer window.
	Settle time.Duration
	// Observer, if set, receives every notification.
	Observer engine.Observer
	Logger   *zerolog.Logger
}

// Run replays events (ordered by offset, ties in input order) through a fresh
// engine and returns the final state after StopRecording.
func Run(events []Event, opts Options) models.State {
	start := opts.Start
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	clk := clock.NewManual(start)

	engineOpts := []engine.Option{engine.WithClock(clk)}
	if opts.Observer != nil {
		engineOpts = append(engineOpts, engine.WithObserver(opts.Observer))
	}
	if opts.Logger != nil {
		engineOpts = append(engineOpts, engine.WithLogger(*opts.Logger))
	} else {
		engineOpts = append(engineOpts, engine.WithLogger(zerolog.Nop()))
	}

	cfg := opts.Engine
	def := engine.DefaultConfig()
	if cfg.BufferWindow <= 0 {
		cfg.BufferWindow = def.BufferWindow
	}
	if cfg.ConsolidationInterval <= 0 {
		cfg.ConsolidationInterval = def.ConsolidationInterval
	}
	if cfg.MeetingID == "" {
		cfg.MeetingID = "replay"
	}
	e := engine.New(cfg, engineOpts...)
	defer e.Close()

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].OffsetMs < ordered[j].OffsetMs })

	e.StartRecording()
	for _, ev := range ordered {
		at := start.Add(time.Duration(ev.OffsetMs) * time.Millisecond)
		clk.AdvanceTo(at)
		e.Ingest(models.Fragment{Speaker: ev.Speaker, Text: ev.Text, ArrivalTime: at})
	}

	settle := opts.Settle
	if settle <= 0 {
		settle = cfg.ConsolidationInterval + cfg.BufferWindow
	}
	clk.Advance(settle)
	e.StopRecording()
	return e.State()
}

// Format renders entries one per line as "[HH:MM:SS] speaker: text" in loc.
func Format(entries []models.TranscriptEntry, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	for _, entry := range entries {
		at := time.UnixMilli(entry.TimestampMs).In(loc)
		fmt.Fprintf(&b, "[%s] %s: %s\n", at.Format("15:04:05"), entry.Speaker, entry.Text)
	}
	return b.String()
}
