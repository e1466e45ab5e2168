package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/observability/logging"
	"clinical-dictation-service/internal/service/dictation"
)

const publishTimeout = 5 * time.Second

// EventPublisher is the subset of Publisher the sink needs.
type EventPublisher interface {
	PublishMedications(ctx context.Context, event models.MedicationsExtracted) error
	PublishMedicalData(ctx context.Context, event models.MedicalDataExtracted) error
	PublishUrgency(ctx context.Context, event models.UrgencyComputed) error
}

// EventSink turns dictation results into published events. Status updates
// are logged only. Publish failures are logged and never reach the session.
type EventSink struct {
	publisher EventPublisher
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewEventSink wraps a publisher as a dictation sink.
func NewEventSink(p EventPublisher) *EventSink {
	return &EventSink{
		publisher: p,
		timeout:   publishTimeout,
		now:       time.Now,
		log:       logging.WithComponent("event-sink"),
	}
}

var _ dictation.Sink = (*EventSink)(nil)

func (s *EventSink) OnMedicationsExtracted(meta dictation.Meta, meds []models.StructuredMedication) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	event := models.MedicationsExtracted{
		EventType:   models.EventMedicationsExtracted,
		SessionID:   meta.SessionID,
		Purpose:     string(meta.Purpose),
		Timestamp:   s.now().UnixMilli(),
		Medications: meds,
	}
	if err := s.publisher.PublishMedications(ctx, event); err != nil {
		s.log.Error().Err(err).Str("sessionId", meta.SessionID).Msg("Failed to publish medications")
	}
}

func (s *EventSink) OnMedicalDataExtracted(meta dictation.Meta, data models.StructuredMedicalData) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	event := models.MedicalDataExtracted{
		EventType: models.EventMedicalDataExtracted,
		SessionID: meta.SessionID,
		Purpose:   string(meta.Purpose),
		Timestamp: s.now().UnixMilli(),
		Data:      data,
	}
	if err := s.publisher.PublishMedicalData(ctx, event); err != nil {
		s.log.Error().Err(err).Str("sessionId", meta.SessionID).Msg("Failed to publish medical data")
	}
}

func (s *EventSink) OnUrgencyComputed(meta dictation.Meta, assessment models.UrgencyAssessment) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	event := models.UrgencyComputed{
		EventType:  models.EventUrgencyComputed,
		SessionID:  meta.SessionID,
		Purpose:    string(meta.Purpose),
		Timestamp:  s.now().UnixMilli(),
		Assessment: assessment,
	}
	if err := s.publisher.PublishUrgency(ctx, event); err != nil {
		s.log.Error().Err(err).Str("sessionId", meta.SessionID).Msg("Failed to publish urgency")
	}
}

func (s *EventSink) OnStatus(meta dictation.Meta, status string) {
	s.log.Info().
		Str("sessionId", meta.SessionID).
		Str("purpose", string(meta.Purpose)).
		Str("status", status).
		Msg("Dictation status")
}
