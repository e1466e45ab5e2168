// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinical_dictation"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	SessionsFailed  *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	TranscriptsDropped *prometheus.CounterVec

	// Audio metrics
	AudioBytesSent  prometheus.Counter
	AudioChunksSent prometheus.Counter

	// Live stream metrics
	StreamErrors      *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	ReconnectOutcomes *prometheus.CounterVec
	STTLatency        *prometheus.HistogramVec

	// Extraction metrics
	Utterances          prometheus.Counter
	MedicationsByRule   *prometheus.CounterVec
	SentencesByCategory *prometheus.CounterVec
	UrgencyByLevel      *prometheus.CounterVec

	// Fallback transcription metrics
	FallbackLatency *prometheus.HistogramVec
	FallbackErrors  *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of dictation sessions started",
		}, []string{"purpose"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of dictation sessions currently recording or processing",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that failed to start",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of dictation sessions from start to completion",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total number of interim transcripts received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final transcripts received",
		}),
		TranscriptsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_dropped_total",
			Help:      "Total number of transcript events discarded",
		}, []string{"reason"}),

		AudioBytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Total audio bytes forwarded to the live stream",
		}),
		AudioChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_sent_total",
			Help:      "Total audio chunks forwarded to the live stream",
		}),

		StreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_errors_total",
			Help:      "Total number of live stream errors by code",
		}, []string{"provider", "code"}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of live stream reconnect attempts",
		}),
		ReconnectOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_outcomes_total",
			Help:      "Total number of reconnect sequences by outcome",
		}, []string{"outcome"}),
		STTLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_call_latency_seconds",
			Help:      "Latency of speech provider RPCs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "code"}),

		Utterances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of utterances segmented from dictation",
		}),
		MedicationsByRule: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "medications_extracted_total",
			Help:      "Total number of medications extracted by matching rule",
		}, []string{"rule"}),
		SentencesByCategory: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_classified_total",
			Help:      "Total number of sentences classified by category",
		}, []string{"category"}),
		UrgencyByLevel: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urgency_assessments_total",
			Help:      "Total number of urgency assessments by level",
		}, []string{"level"}),

		FallbackLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fallback_latency_seconds",
			Help:      "Fallback transcription latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		FallbackErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_errors_total",
			Help:      "Total number of fallback transcription errors",
		}, []string{"provider"}),

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
	}
}

// RecordSessionStart records a dictation session starting.
func (m *Metrics) RecordSessionStart(purpose string) {
	m.SessionsTotal.WithLabelValues(purpose).Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session returning to idle.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionFailed records a session that could not start recording.
func (m *Metrics) RecordSessionFailed(reason string) {
	m.SessionsFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordPartialTranscript() {
	m.TranscriptsPartial.Inc()
}

func (m *Metrics) RecordFinalTranscript() {
	m.TranscriptsFinal.Inc()
}

// RecordTranscriptDropped records a stale or duplicate transcript event.
func (m *Metrics) RecordTranscriptDropped(reason string) {
	m.TranscriptsDropped.WithLabelValues(reason).Inc()
}

// RecordAudioSent records audio forwarded to the live stream.
func (m *Metrics) RecordAudioSent(bytes int) {
	m.AudioBytesSent.Add(float64(bytes))
	m.AudioChunksSent.Inc()
}

// RecordStreamError records a live stream error.
func (m *Metrics) RecordStreamError(provider, code string) {
	m.StreamErrors.WithLabelValues(provider, code).Inc()
}

func (m *Metrics) RecordReconnectAttempt() {
	m.ReconnectAttempts.Inc()
}

// RecordReconnectOutcome records whether a reconnect sequence recovered or gave up.
func (m *Metrics) RecordReconnectOutcome(outcome string) {
	m.ReconnectOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSTTCall records a speech provider RPC.
func (m *Metrics) RecordSTTCall(method, code string, latencySeconds float64) {
	m.STTLatency.WithLabelValues(method, code).Observe(latencySeconds)
}

func (m *Metrics) RecordUtterances(n int) {
	m.Utterances.Add(float64(n))
}

func (m *Metrics) RecordMedication(rule string) {
	m.MedicationsByRule.WithLabelValues(rule).Inc()
}

func (m *Metrics) RecordSentence(category string) {
	m.SentencesByCategory.WithLabelValues(category).Inc()
}

func (m *Metrics) RecordUrgency(level string) {
	m.UrgencyByLevel.WithLabelValues(level).Inc()
}

// RecordFallback records a fallback transcription call.
func (m *Metrics) RecordFallback(provider string, err error, latencySeconds float64) {
	m.FallbackLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.FallbackErrors.WithLabelValues(provider).Inc()
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
