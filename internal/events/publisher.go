// Package events publishes extraction results to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/observability/logging"
	"clinical-dictation-service/internal/observability/metrics"
	"clinical-dictation-service/internal/schema"
)

// Publisher publishes extraction events to one Kafka topic per result kind.
type Publisher struct {
	writerMedications *kafka.Writer
	writerMedicalData *kafka.Writer
	writerUrgency     *kafka.Writer
	principal         string
	topicMedications  string
	topicMedicalData  string
	topicUrgency      string
	enabled           bool
	validator         *schema.Validator
	metrics           *metrics.Metrics
	log               zerolog.Logger
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers          []string
	TopicMedications string
	TopicMedicalData string
	TopicUrgency     string
	Principal        string
	Enabled          bool
}

// New creates a Kafka event publisher. A nil or disabled config yields a
// publisher that only logs events.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics
	v := schema.New()
	logger := logging.WithComponent("kafka-publisher")

	if cfg == nil {
		logger.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled:   false,
			validator: v,
			metrics:   m,
			log:       logger,
		}
	}

	p := &Publisher{
		principal:        cfg.Principal,
		topicMedications: cfg.TopicMedications,
		topicMedicalData: cfg.TopicMedicalData,
		topicUrgency:     cfg.TopicUrgency,
		validator:        v,
		metrics:          m,
		log:              logger,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writerMedications = newWriter(cfg.Brokers, cfg.TopicMedications, transport)
	p.writerMedicalData = newWriter(cfg.Brokers, cfg.TopicMedicalData, transport)
	p.writerUrgency = newWriter(cfg.Brokers, cfg.TopicUrgency, transport)
	p.enabled = true

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicMedications", cfg.TopicMedications).
		Str("topicMedicalData", cfg.TopicMedicalData).
		Str("topicUrgency", cfg.TopicUrgency).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
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

// PublishMedications publishes a medications event keyed by session.
func (p *Publisher) PublishMedications(ctx context.Context, event models.MedicationsExtracted) error {
	return p.publish(ctx, p.writerMedications, p.topicMedications, event.EventType, event.SessionID, event)
}

// PublishMedicalData publishes a medical data event keyed by session.
func (p *Publisher) PublishMedicalData(ctx context.Context, event models.MedicalDataExtracted) error {
	return p.publish(ctx, p.writerMedicalData, p.topicMedicalData, event.EventType, event.SessionID, event)
}

// PublishUrgency publishes an urgency event keyed by session.
func (p *Publisher) PublishUrgency(ctx context.Context, event models.UrgencyComputed) error {
	return p.publish(ctx, p.writerUrgency, p.topicUrgency, event.EventType, event.SessionID, event)
}

// publish validates and writes one event to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	if err := p.validator.Validate(event); err != nil {
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	p.log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
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
		p.log.Error().
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

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for name, w := range map[string]*kafka.Writer{
		"medications":  p.writerMedications,
		"medical_data": p.writerMedicalData,
		"urgency":      p.writerUrgency,
	} {
		if w == nil {
			continue
		}
		if e := w.Close(); e != nil {
			p.log.Error().Err(e).Str("writer", name).Msg("Error closing writer")
			err = e
		}
	}
	return err
}
