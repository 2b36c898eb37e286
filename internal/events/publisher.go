// Package events publishes transcript change events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
)

// publishTimeout bounds a single Notify-driven publish.
const publishTimeout = 10 * time.Second

// Publisher publishes transcript and recording-status events to separate
// Kafka topics.
type Publisher struct {
	writerTranscript *kafka.Writer
	writerStatus     *kafka.Writer
	principal        string
	topicTranscript  string
	topicStatus      string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicTranscript string
	TopicStatus     string
	Principal       string
	Enabled         bool
}

// New creates a Kafka event publisher. With Kafka disabled or no brokers it
// runs in log-only mode.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicTranscript: cfg.TopicTranscript,
			topicStatus:     cfg.TopicStatus,
			enabled:         false,
			metrics:         m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscript", cfg.TopicTranscript).
		Str("topicStatus", cfg.TopicStatus).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscript: newWriter(cfg.Brokers, cfg.TopicTranscript, transport),
		writerStatus:     newWriter(cfg.Brokers, cfg.TopicStatus, transport),
		principal:        cfg.Principal,
		topicTranscript:  cfg.TopicTranscript,
		topicStatus:      cfg.TopicStatus,
		enabled:          true,
		metrics:          m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Notify routes a notification to its topic, keyed by meeting so one
// meeting's events stay ordered within a partition. It blocks until the
// write completes; wrap it in notify.Async.
func (p *Publisher) Notify(n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	key := n.MeetingID
	if key == "" {
		key = uuid.NewString()
	}

	if n.EventType == models.EventRecordingStatusChanged {
		_ = p.PublishStatus(ctx, key, n)
		return
	}
	_ = p.PublishTranscript(ctx, key, n)
}

// PublishTranscript publishes a transcript event to the transcript topic.
func (p *Publisher) PublishTranscript(ctx context.Context, key string, n models.Notification) error {
	return p.publish(ctx, p.writerTranscript, p.topicTranscript, n.EventType, key, n)
}

// PublishStatus publishes a recording status event to the status topic.
func (p *Publisher) PublishStatus(ctx context.Context, key string, n models.Notification) error {
	return p.publish(ctx, p.writerStatus, p.topicStatus, n.EventType, key, n)
}

// publish writes one event to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		Str("eventType", eventType).
		Int("bytes", len(payload)).
		Msg("Publishing event")

	// Log-only mode
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscript != nil {
		if e := p.writerTranscript.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcript writer")
			err = e
		}
	}
	if p.writerStatus != nil {
		if e := p.writerStatus.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing status writer")
			err = e
		}
	}
	return err
}
