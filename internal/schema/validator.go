// Package schema validates extraction events before they leave the service.
package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"clinical-dictation-service/internal/models"
)

// ErrInvalidEvent is wrapped by every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the envelope and payload of a published event.
func (v *Validator) Validate(event any) error {
	var err error
	switch e := event.(type) {
	case models.MedicationsExtracted:
		err = v.validateMedications(e)
	case *models.MedicationsExtracted:
		err = v.validateMedications(*e)
	case models.MedicalDataExtracted:
		err = v.validateMedicalData(e)
	case *models.MedicalDataExtracted:
		err = v.validateMedicalData(*e)
	case models.UrgencyComputed:
		err = v.validateUrgency(e)
	case *models.UrgencyComputed:
		err = v.validateUrgency(*e)
	default:
		err = fmt.Errorf("%w: unsupported type %T", ErrInvalidEvent, event)
	}

	if err != nil {
		log.Warn().Err(err).Msg("Event failed schema validation")
		return err
	}
	log.Debug().Type("event", event).Msg("Event passed schema validation")
	return nil
}

func (v *Validator) validateMedications(e models.MedicationsExtracted) error {
	if err := envelope(e.EventType, models.EventMedicationsExtracted, e.SessionID, e.Timestamp); err != nil {
		return err
	}
	if len(e.Medications) == 0 {
		return fmt.Errorf("%w: no medications", ErrInvalidEvent)
	}
	for i, m := range e.Medications {
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("%w: medication %d has no name", ErrInvalidEvent, i)
		}
	}
	return nil
}

func (v *Validator) validateMedicalData(e models.MedicalDataExtracted) error {
	if err := envelope(e.EventType, models.EventMedicalDataExtracted, e.SessionID, e.Timestamp); err != nil {
		return err
	}
	d := e.Data
	if d.Symptoms == nil || d.Allergies == nil || d.Medications == nil || d.MedicalHistory == nil {
		return fmt.Errorf("%w: medical data lists must not be null", ErrInvalidEvent)
	}
	pain, err := strconv.Atoi(d.PainLevel)
	if err != nil || pain < 0 || pain > 10 {
		return fmt.Errorf("%w: pain level %q outside 0-10", ErrInvalidEvent, d.PainLevel)
	}
	return nil
}

func (v *Validator) validateUrgency(e models.UrgencyComputed) error {
	if err := envelope(e.EventType, models.EventUrgencyComputed, e.SessionID, e.Timestamp); err != nil {
		return err
	}
	a := e.Assessment
	switch a.Level {
	case models.UrgencyCritical, models.UrgencyHigh, models.UrgencyMedium, models.UrgencyLow:
	default:
		return fmt.Errorf("%w: unknown urgency level %q", ErrInvalidEvent, a.Level)
	}
	if a.Score < 0 {
		return fmt.Errorf("%w: negative urgency score %d", ErrInvalidEvent, a.Score)
	}
	if len(a.RecommendedTests) == 0 || a.RecommendedSpecialist == "" || a.EstimatedWaitTime == "" {
		return fmt.Errorf("%w: incomplete urgency recommendation", ErrInvalidEvent)
	}
	return nil
}

func envelope(eventType, want, sessionID string, ts int64) error {
	if eventType != want {
		return fmt.Errorf("%w: event type %q, want %q", ErrInvalidEvent, eventType, want)
	}
	if sessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrInvalidEvent)
	}
	if ts <= 0 {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	return nil
}
