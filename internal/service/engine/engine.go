// Package engine turns a noisy stream of caption fragments into a clean,
// ordered transcript. It owns the speaker buffers, the transcript and the
// recording flag behind a single mutex, and hands notifications and
// snapshots to observers after the mutex is released.
package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/clock"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/classifier"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/speaker"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/transcript"
)

// Observer receives change notifications. Notify must not block; wrap slow
// sinks in notify.Async.
type Observer interface {
	Notify(n models.Notification)
}

// Persister receives a snapshot after every transcript mutation. Persist
// must not block; wrap slow stores in storage.AsyncSaver.
type Persister interface {
	Persist(state models.State)
}

// Config holds the engine timing and labeling settings.
type Config struct {
	MeetingID             string
	BufferWindow          time.Duration
	ConsolidationInterval time.Duration
	NotificationThrottle  time.Duration
	SpeakerAliases        map[string]string
}

// DefaultConfig returns the standard timing contracts.
func DefaultConfig() Config {
	return Config{
		BufferWindow:          3000 * time.Millisecond,
		ConsolidationInterval: 8000 * time.Millisecond,
		NotificationThrottle:  2000 * time.Millisecond,
		SpeakerAliases:        DefaultSpeakerAliases(),
	}
}

// DefaultSpeakerAliases maps the labels the meeting UI uses for the local
// participant to a single display name.
func DefaultSpeakerAliases() map[string]string {
	return map[string]string{
		"You":  "You (Me)",
		"Você": "You (Me)",
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithObserver adds an observer. Observers are notified in the order added.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithPersister sets the snapshot persister.
func WithPersister(p Persister) Option {
	return func(e *Engine) { e.persister = p }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics replaces the default metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// delivery is one queued side effect.
type delivery struct {
	notification *models.Notification
	snapshot     *models.State
}

// Engine is the caption consolidation engine.
type Engine struct {
	cfg       Config
	clock     clock.Clock
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	observers []Observer
	persister Persister

	mu           sync.Mutex
	recording    bool
	meetingID    string
	meetingStart string
	buffers      *speaker.Store
	transcript   *transcript.Transcript
	generation   uint64
	sweep        clock.Timer
	sweepGen     uint64
	lastNotify   time.Time
	sequence     uint64
	outbox       []delivery

	dispatchMu sync.Mutex
}

// New creates an engine. Zero durations in cfg fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.BufferWindow <= 0 {
		cfg.BufferWindow = def.BufferWindow
	}
	if cfg.ConsolidationInterval <= 0 {
		cfg.ConsolidationInterval = def.ConsolidationInterval
	}
	if cfg.NotificationThrottle <= 0 {
		cfg.NotificationThrottle = def.NotificationThrottle
	}
	if cfg.SpeakerAliases == nil {
		cfg.SpeakerAliases = def.SpeakerAliases
	}
	if cfg.MeetingID == "" {
		cfg.MeetingID = uuid.NewString()
	}

	e := &Engine{
		cfg:        cfg,
		clock:      clock.Real(),
		logger:     logging.WithMeeting("engine", cfg.MeetingID),
		metrics:    metrics.DefaultMetrics,
		meetingID:  cfg.MeetingID,
		buffers:    speaker.NewStore(),
		transcript: transcript.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MeetingID returns the meeting identifier.
func (e *Engine) MeetingID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meetingID
}

// IsRecording reports whether fragments are currently accepted.
func (e *Engine) IsRecording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

// State returns a copy of the externally visible state.
func (e *Engine) State() models.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Ingest classifies one fragment against its speaker's buffer and applies
// the decision. Fragments are ignored while not recording.
func (e *Engine) Ingest(f models.Fragment) {
	text := strings.TrimSpace(f.Text)
	name := classifier.NormalizeSpeaker(f.Speaker, e.cfg.SpeakerAliases)
	if text == "" {
		e.metrics.RecordFragment("empty")
		return
	}

	e.withLock(func() {
		if !e.recording {
			e.metrics.RecordFragment("not_recording")
			return
		}

		now := e.clock.Now()
		if !f.ArrivalTime.IsZero() {
			e.metrics.RecordIngestLag(now.Sub(f.ArrivalTime).Seconds())
		}

		buf := e.buffers.Get(name)
		decision := classifier.Classify(buf.Text(), buf.Recent(), text)
		e.metrics.RecordFragment(decision.String())

		logger := logging.WithSpeaker(e.logger, name)
		logger.Debug().
			Str("decision", decision.String()).
			Str("text", text).
			Msg("Fragment classified")

		switch decision {
		case classifier.DecisionIncremental:
			_ = buf.Replace(text, now)
			e.armLocked(buf)
		case classifier.DecisionStale:
			buf.Touch(now)
		case classifier.DecisionDuplicate:
		case classifier.DecisionContinuation:
			_ = buf.Append(text, now)
			e.armLocked(buf)
		case classifier.DecisionNewSentence:
			e.finalizeLocked(buf, triggerSuperseded)
			if err := buf.Begin(text, now); err != nil {
				logger.Warn().Err(err).Msg("Failed to start sentence")
				return
			}
			e.armLocked(buf)
		}
		e.metrics.SetBufferState(e.buffers.Active(), e.transcript.Len())
	})
}

// StartRecording begins accepting fragments. Buffers are reset and the sweep
// interval starts. A no-op when already recording.
func (e *Engine) StartRecording() {
	e.withLock(func() {
		if e.recording {
			return
		}
		e.recording = true
		if e.meetingStart == "" {
			e.meetingStart = transcript.FormatTimestamp(e.clock.Now())
		}
		e.buffers.Reset()
		e.startSweepLocked()
		e.metrics.SetRecording(true)
		e.persistLocked()
		e.queueStatusLocked(true)
		e.logger.Info().Msg("Recording started")
	})
}

// StopRecording flushes every buffer, consolidates, cancels the sweep and
// emits the final transcript. It returns once the state is settled. A no-op
// when not recording.
func (e *Engine) StopRecording() {
	e.withLock(func() {
		if !e.recording {
			return
		}
		e.recording = false
		for _, name := range e.buffers.Speakers() {
			buf, _ := e.buffers.Lookup(name)
			e.finalizeLocked(buf, triggerStop)
		}
		e.consolidateLocked()
		e.stopSweepLocked()
		e.metrics.SetRecording(false)
		e.metrics.SetBufferState(e.buffers.Active(), e.transcript.Len())
		e.persistLocked()
		e.queueStatusLocked(false)
		e.queueTranscriptLocked(models.EventTranscriptUpdated)
		e.logger.Info().Int("entries", e.transcript.Len()).Msg("Recording stopped")
	})
}

// ClearTranscript empties the transcript, resets every buffer and restarts
// the sweep interval.
func (e *Engine) ClearTranscript() {
	e.withLock(func() {
		e.transcript.Clear()
		e.buffers.Reset()
		e.startSweepLocked()
		e.metrics.SetBufferState(0, 0)
		e.persistLocked()
		e.queueTranscriptLocked(models.EventTranscriptCleared)
		e.logger.Info().Msg("Transcript cleared")
	})
}

// Restore loads a persisted snapshot. The recording flag is not restored:
// buffers and timers do not survive a restart, so recording resumes only on
// an explicit StartRecording.
func (e *Engine) Restore(s models.State) {
	e.withLock(func() {
		e.transcript.Replace(s.Transcript)
		if s.MeetingID != "" {
			e.meetingID = s.MeetingID
			e.logger = logging.WithMeeting("engine", s.MeetingID)
		}
		if s.MeetingStartTime != nil {
			e.meetingStart = *s.MeetingStartTime
		}
		e.metrics.SetBufferState(e.buffers.Active(), e.transcript.Len())
		e.logger.Info().
			Int("entries", e.transcript.Len()).
			Bool("wasRecording", s.IsRecording).
			Msg("Transcript restored")
	})
}

// Close cancels every timer without flushing. Call StopRecording first to
// keep buffered text.
func (e *Engine) Close() {
	e.withLock(func() {
		e.stopSweepLocked()
		for _, name := range e.buffers.Speakers() {
			buf, _ := e.buffers.Lookup(name)
			buf.Disarm()
		}
	})
}

func (e *Engine) stateLocked() models.State {
	s := models.State{
		IsRecording: e.recording,
		Transcript:  e.transcript.Entries(),
		MeetingID:   e.meetingID,
	}
	if e.meetingStart != "" {
		start := e.meetingStart
		s.MeetingStartTime = &start
	}
	return s
}

// withLock runs fn under the state mutex, then delivers whatever fn queued.
func (e *Engine) withLock(fn func()) {
	e.mu.Lock()
	fn()
	e.mu.Unlock()
	e.dispatch()
}
