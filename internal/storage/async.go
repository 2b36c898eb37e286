package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
)

// AsyncSaver writes snapshots to a Store from a background goroutine.
// Only the newest pending snapshot is kept: a burst of mutations results in
// one write of the final state.
type AsyncSaver struct {
	store   Store
	backend string
	timeout time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu      sync.Mutex
	pending *models.State
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewAsyncSaver starts the background writer. backend labels metrics and
// logs; timeout bounds each Save.
func NewAsyncSaver(store Store, backend string, timeout time.Duration) *AsyncSaver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &AsyncSaver{
		store:   store,
		backend: backend,
		timeout: timeout,
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("storage").With().Str("backend", backend).Logger(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Persist records state as the snapshot to write next. It never blocks.
func (s *AsyncSaver) Persist(state models.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = &state
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close writes any pending snapshot and stops the writer. It does not close
// the underlying Store.
func (s *AsyncSaver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.wake)
	s.mu.Unlock()

	<-s.done
}

func (s *AsyncSaver) run() {
	defer close(s.done)
	for range s.wake {
		s.flush()
	}
	s.flush()
}

func (s *AsyncSaver) flush() {
	s.mu.Lock()
	state := s.pending
	s.pending = nil
	s.mu.Unlock()
	if state == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := s.store.Save(ctx, *state)
	s.metrics.RecordPersist(s.backend, err, time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn().Err(err).Int("entries", len(state.Transcript)).Msg("Failed to persist snapshot")
	}
}
