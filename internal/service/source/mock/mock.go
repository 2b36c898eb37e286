// Package mock provides a scripted caption source for running the service
// without a browser. It simulates how a meeting UI reveals captions: each
// utterance appears as a growing prefix, one word at a time, and the live
// caption is occasionally re-rendered unchanged.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/source"
)

// Utterance is one scripted line.
type Utterance struct {
	Speaker string
	Text    string
}

// DefaultUtterances provides a short sample meeting.
var DefaultUtterances = []Utterance{
	{Speaker: "Alice", Text: "Good morning everyone, thanks for joining the weekly sync."},
	{Speaker: "Bob", Text: "Morning! I have an update on the release timeline."},
	{Speaker: "You", Text: "Great, let's start with the release then."},
	{Speaker: "Bob", Text: "We are on track to ship the beta next Friday."},
	{Speaker: "Alice", Text: "That works for marketing, we will prepare the announcement."},
	{Speaker: "Carol", Text: "Can we also review the open support tickets before we finish?"},
}

// Config controls pacing.
type Config struct {
	Utterances []Utterance
	// WordInterval is the delay between successive prefixes.
	WordInterval time.Duration
	// Pause is the silence between utterances.
	Pause time.Duration
	// Loop restarts the script when it ends.
	Loop bool
}

// DefaultConfig returns realistic pacing over DefaultUtterances.
func DefaultConfig() Config {
	return Config{
		Utterances:   DefaultUtterances,
		WordInterval: 250 * time.Millisecond,
		Pause:        4 * time.Second,
		Loop:         true,
	}
}

// Source replays the script.
type Source struct {
	cfg    Config
	mu     sync.Mutex
	closed bool
	sent   int
}

// New creates a mock source. Empty fields fall back to DefaultConfig.
func New(cfg Config) *Source {
	def := DefaultConfig()
	if len(cfg.Utterances) == 0 {
		cfg.Utterances = def.Utterances
	}
	if cfg.WordInterval <= 0 {
		cfg.WordInterval = def.WordInterval
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}
	return &Source{cfg: cfg}
}

var _ source.Source = (*Source)(nil)

// Prefixes returns the growing caption texts shown for text.
func Prefixes(text string) []string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for i := range words {
		out = append(out, strings.Join(words[:i+1], " "))
	}
	return out
}

// Run emits the script until ctx is done, the source is closed, or the
// script ends without Loop.
func (s *Source) Run(ctx context.Context, sink source.Sink) error {
	for {
		for _, u := range s.cfg.Utterances {
			prefixes := Prefixes(u.Text)
			for i, text := range prefixes {
				if !s.emit(sink, u.Speaker, text) {
					return nil
				}
				// The UI re-renders the completed line once before it settles.
				if i == len(prefixes)-1 && !s.emit(sink, u.Speaker, text) {
					return nil
				}
				if !sleep(ctx, s.cfg.WordInterval) {
					return nil
				}
			}
			if !sleep(ctx, s.cfg.Pause) {
				return nil
			}
		}
		if !s.cfg.Loop {
			return nil
		}
	}
}

// Sent returns the number of fragments emitted so far.
func (s *Source) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Close stops Run at the next fragment.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Source) emit(sink source.Sink, speaker, text string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.sent++
	s.mu.Unlock()

	sink.Ingest(models.Fragment{Speaker: speaker, Text: text, ArrivalTime: time.Now()})
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
