// Package kafka consumes caption fragments published by the meeting page
// observer to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/metrics"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/schema"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/service/source"
)

// retryDelay is the pause after a failed fetch.
const retryDelay = time.Second

// Config holds consumer settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// messageReader is the subset of *kafka.Reader used here.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Source reads JSON fragments from a topic. Messages are keyed by speaker,
// so one speaker's fragments stay ordered within a partition.
type Source struct {
	reader    messageReader
	topic     string
	validator *schema.Validator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// New creates a consumer-group reader for cfg.
func New(cfg Config, validator *schema.Validator) *Source {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        250 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	return newWithReader(reader, cfg.Topic, validator)
}

func newWithReader(reader messageReader, topic string, validator *schema.Validator) *Source {
	if validator == nil {
		validator = schema.New()
	}
	return &Source{
		reader:    reader,
		topic:     topic,
		validator: validator,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithComponent("source.kafka").With().Str("topic", topic).Logger(),
	}
}

var _ source.Source = (*Source)(nil)

// Run consumes until ctx is cancelled. Malformed or invalid messages are
// logged, counted and skipped.
func (s *Source) Run(ctx context.Context, sink source.Sink) error {
	s.logger.Info().Msg("Consuming caption fragments")
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			s.metrics.RecordKafkaConsume(s.topic, "fetch_error")
			s.logger.Warn().Err(err).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		f, err := s.decode(msg)
		if err != nil {
			s.metrics.RecordKafkaConsume(s.topic, "invalid")
			s.logger.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Skipping caption message")
			continue
		}

		s.metrics.RecordKafkaConsume(s.topic, "ok")
		sink.Ingest(f)
	}
}

func (s *Source) decode(msg kafka.Message) (models.Fragment, error) {
	var f models.Fragment
	if err := json.Unmarshal(msg.Value, &f); err != nil {
		return models.Fragment{}, err
	}
	if err := s.validator.ValidateFragment(f); err != nil {
		return models.Fragment{}, err
	}
	if f.ArrivalTime.IsZero() {
		f.ArrivalTime = msg.Time
	}
	return f, nil
}

// Close closes the reader.
func (s *Source) Close() error {
	return s.reader.Close()
}
