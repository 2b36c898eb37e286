// Package notify delivers engine change notifications to slow or remote
// observers without blocking the engine.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
)

// Observer receives notifications.
type Observer interface {
	Notify(n models.Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(n models.Notification)

// Notify calls f(n).
func (f ObserverFunc) Notify(n models.Notification) { f(n) }

// Async forwards notifications to another observer on its own goroutine.
// When the queue is full the notification is dropped and counted.
type Async struct {
	name    string
	next    Observer
	queue   chan models.Notification
	done    chan struct{}
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts a worker that feeds next from a queue of the given size.
func NewAsync(name string, next Observer, size int) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		name:    name,
		next:    next,
		queue:   make(chan models.Notification, size),
		done:    make(chan struct{}),
		metrics: metrics.DefaultMetrics,
		logger:  logging.WithComponent("notify").With().Str("queue", name).Logger(),
	}
	go a.run()
	return a
}

// Notify enqueues n without blocking.
func (a *Async) Notify(n models.Notification) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- n:
	default:
		a.metrics.RecordAsyncDropped(a.name)
		a.logger.Warn().
			Str("eventType", n.EventType).
			Uint64("sequence", n.Sequence).
			Msg("Notification queue full, dropping")
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for n := range a.queue {
		a.next.Notify(n)
	}
}
