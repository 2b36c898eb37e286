package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
)

// Subscription is one listener's feed. C is closed when the subscription
// ends.
type Subscription struct {
	C <-chan models.Notification

	ch chan models.Notification
	b  *Broadcaster
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.b.unsubscribe(s)
}

// Broadcaster fans notifications out to any number of subscribers.
// A subscriber that falls behind misses notifications instead of slowing
// the others.
type Broadcaster struct {
	broadcast   chan models.Notification
	subscribers map[*Subscription]struct{}
	buffer      int
	mu          sync.RWMutex
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewBroadcaster creates a broadcaster whose subscribers each buffer up to
// buffer notifications. Run must be started for delivery to happen.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{
		broadcast:   make(chan models.Notification, 100),
		subscribers: make(map[*Subscription]struct{}),
		buffer:      buffer,
		metrics:     metrics.DefaultMetrics,
		logger:      logging.WithComponent("broadcaster"),
	}
}

// Notify queues n for fan-out without blocking.
func (b *Broadcaster) Notify(n models.Notification) {
	select {
	case b.broadcast <- n:
	default:
		b.metrics.RecordAsyncDropped("broadcast")
		b.logger.Warn().Str("eventType", n.EventType).Msg("Broadcast queue full, dropping")
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan models.Notification, b.buffer)
	s := &Subscription{C: ch, ch: ch, b: b}

	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	total := len(b.subscribers)
	b.mu.Unlock()

	b.logger.Debug().Int("subscribers", total).Msg("Subscriber added")
	return s
}

// Len returns the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Run fans out notifications until ctx is done, then closes every
// subscription.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer b.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-b.broadcast:
			b.fanOut(n)
		}
	}
}

func (b *Broadcaster) fanOut(n models.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subscribers {
		select {
		case s.ch <- n:
		default:
			b.metrics.RecordAsyncDropped("subscriber")
		}
	}
}

func (b *Broadcaster) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[s]; ok {
		delete(b.subscribers, s)
		close(s.ch)
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subscribers {
		close(s.ch)
	}
	b.subscribers = make(map[*Subscription]struct{})
}
