// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sonara"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Ingest metrics
	FragmentsTotal *prometheus.CounterVec
	IngestLag      prometheus.Histogram

	// Buffer and transcript metrics
	Finalizations     *prometheus.CounterVec
	ActiveBuffers     prometheus.Gauge
	TranscriptEntries prometheus.Gauge
	RecordingActive   prometheus.Gauge

	// Consolidation metrics
	ConsolidationRuns     prometheus.Counter
	ConsolidationRemoved  *prometheus.CounterVec
	ConsolidationDuration prometheus.Histogram

	// Notification metrics
	NotificationsTotal     *prometheus.CounterVec
	NotificationsThrottled prometheus.Counter
	AsyncDropped           *prometheus.CounterVec
	WebSocketClients       prometheus.Gauge

	// Stream metrics (gRPC Watch)
	StreamsTotal   prometheus.Counter
	StreamsActive  prometheus.Gauge
	StreamsSuccess prometheus.Counter
	StreamsFailed  prometheus.Counter
	StreamDuration prometheus.Histogram

	// Kafka metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
	KafkaConsumeTotal   *prometheus.CounterVec

	// Persistence metrics
	PersistTotal   *prometheus.CounterVec
	PersistLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Ingest metrics
		FragmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_total",
			Help:      "Total number of caption fragments ingested, by classifier decision",
		}, []string{"decision"}),
		IngestLag: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_lag_seconds",
			Help:      "Delay between fragment arrival at the source and ingestion by the engine",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}),

		// Buffer and transcript metrics
		Finalizations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finalizations_total",
			Help:      "Total number of speaker buffers finalized, by outcome and trigger",
		}, []string{"outcome", "trigger"}),
		ActiveBuffers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_buffers",
			Help:      "Number of speaker buffers currently holding text",
		}),
		TranscriptEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcript_entries",
			Help:      "Number of entries in the transcript",
		}),
		RecordingActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recording_active",
			Help:      "1 while recording, 0 otherwise",
		}),

		// Consolidation metrics
		ConsolidationRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidation_runs_total",
			Help:      "Total number of consolidation passes",
		}),
		ConsolidationRemoved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consolidation_removed_total",
			Help:      "Total number of entries removed by consolidation, by reason",
		}, []string{"reason"}),
		ConsolidationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consolidation_duration_seconds",
			Help:      "Duration of consolidation passes in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		// Notification metrics
		NotificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of change notifications delivered to observers",
		}, []string{"event_type"}),
		NotificationsThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_throttled_total",
			Help:      "Total number of transcript notifications skipped by the throttle",
		}),
		AsyncDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "async_dropped_total",
			Help:      "Total number of items dropped because an async queue was full",
		}, []string{"queue"}),
		WebSocketClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected websocket notification clients",
		}),

		// Stream metrics
		StreamsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of gRPC streams started",
		}),
		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active gRPC streams",
		}),
		StreamsSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_success_total",
			Help:      "Total number of successfully completed streams",
		}),
		StreamsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_failed_total",
			Help:      "Total number of failed streams",
		}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of gRPC streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 30, 60, 300, 900, 3600},
		}),

		// Kafka metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
		KafkaConsumeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_consume_total",
			Help:      "Total number of Kafka messages consumed, by result",
		}, []string{"topic", "result"}),

		// Persistence metrics
		PersistTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_total",
			Help:      "Total number of snapshot writes, by backend and result",
		}, []string{"backend", "result"}),
		PersistLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_latency_seconds",
			Help:      "Snapshot write latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"backend"}),
	}
}

// RecordFragment records a fragment and the classifier decision it produced.
func (m *Metrics) RecordFragment(decision string) {
	m.FragmentsTotal.WithLabelValues(decision).Inc()
}

// RecordIngestLag records the delay between source arrival and ingestion.
func (m *Metrics) RecordIngestLag(seconds float64) {
	if seconds >= 0 {
		m.IngestLag.Observe(seconds)
	}
}

// RecordFinalization records a buffer finalization outcome.
func (m *Metrics) RecordFinalization(outcome, trigger string) {
	m.Finalizations.WithLabelValues(outcome, trigger).Inc()
}

// SetBufferState updates the buffer and transcript gauges.
func (m *Metrics) SetBufferState(activeBuffers, transcriptEntries int) {
	m.ActiveBuffers.Set(float64(activeBuffers))
	m.TranscriptEntries.Set(float64(transcriptEntries))
}

// SetRecording updates the recording gauge.
func (m *Metrics) SetRecording(recording bool) {
	if recording {
		m.RecordingActive.Set(1)
		return
	}
	m.RecordingActive.Set(0)
}

// RecordConsolidation records a consolidation pass.
func (m *Metrics) RecordConsolidation(pruned, sameSpeaker, misattributed int, durationSeconds float64) {
	m.ConsolidationRuns.Inc()
	m.ConsolidationDuration.Observe(durationSeconds)
	m.ConsolidationRemoved.WithLabelValues("pruned").Add(float64(pruned))
	m.ConsolidationRemoved.WithLabelValues("same_speaker").Add(float64(sameSpeaker))
	m.ConsolidationRemoved.WithLabelValues("misattribution").Add(float64(misattributed))
}

// RecordNotification records a notification delivered to observers.
func (m *Metrics) RecordNotification(eventType string) {
	m.NotificationsTotal.WithLabelValues(eventType).Inc()
}

// RecordNotificationThrottled records a notification skipped by the throttle.
func (m *Metrics) RecordNotificationThrottled() {
	m.NotificationsThrottled.Inc()
}

// RecordAsyncDropped records an item dropped by a full async queue.
func (m *Metrics) RecordAsyncDropped(queue string) {
	m.AsyncDropped.WithLabelValues(queue).Inc()
}

// RecordStreamStart records a new stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a stream ending.
func (m *Metrics) RecordStreamEnd(success bool, durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
	if success {
		m.StreamsSuccess.Inc()
	} else {
		m.StreamsFailed.Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordKafkaConsume records a consumed Kafka message.
func (m *Metrics) RecordKafkaConsume(topic, result string) {
	m.KafkaConsumeTotal.WithLabelValues(topic, result).Inc()
}

// RecordPersist records a snapshot write.
func (m *Metrics) RecordPersist(backend string, err error, latencySeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PersistTotal.WithLabelValues(backend, result).Inc()
	m.PersistLatency.WithLabelValues(backend).Observe(latencySeconds)
}
