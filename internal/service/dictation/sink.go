package dictation

import (
	"fmt"
	"strings"

	"clinical-dictation-service/internal/models"
)

// Purpose selects which structured results a session produces.
type Purpose string

const (
	PurposeNotes        Purpose = "notes"
	PurposeDiagnosis    Purpose = "diagnosis"
	PurposePrescription Purpose = "prescription"
	PurposeTriage       Purpose = "triage"
)

// ParsePurpose validates a purpose name.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(strings.ToLower(strings.TrimSpace(s))); p {
	case PurposeNotes, PurposeDiagnosis, PurposePrescription, PurposeTriage:
		return p, nil
	default:
		return "", fmt.Errorf("unknown dictation purpose %q", s)
	}
}

// Stages returns the pipeline stages the purpose needs.
func (p Purpose) Stages() Stage {
	switch p {
	case PurposePrescription:
		return StageMedications
	case PurposeTriage:
		return StageMedicalData | StageUrgency
	default:
		return StageMedicalData
	}
}

// Status messages shown to the operator.
const (
	StatusRequesting      = "Requesting microphone access…"
	StatusRecording       = "Recording in progress"
	StatusReconnecting    = "Reconnecting live captions…"
	StatusLiveUnavailable = "Live captions unavailable, recording continues"
	StatusTranscribing    = "Transcribing recording…"
	StatusProcessing      = "Processing audio…"
	StatusComplete        = "Dictation complete"
	StatusDenied          = "Microphone access denied"
	StatusNoDevice        = "No microphone available"
)

// Meta identifies the session a result belongs to.
type Meta struct {
	SessionID string
	Purpose   Purpose
}

// Sink receives the structured output of dictation sessions. Calls for one
// session are made from one goroutine at a time.
type Sink interface {
	OnMedicationsExtracted(meta Meta, meds []models.StructuredMedication)
	OnMedicalDataExtracted(meta Meta, data models.StructuredMedicalData)
	OnUrgencyComputed(meta Meta, assessment models.UrgencyAssessment)
	OnStatus(meta Meta, status string)
}

// SinkFuncs adapts optional functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	Medications func(Meta, []models.StructuredMedication)
	MedicalData func(Meta, models.StructuredMedicalData)
	Urgency     func(Meta, models.UrgencyAssessment)
	Status      func(Meta, string)
}

func (f SinkFuncs) OnMedicationsExtracted(meta Meta, meds []models.StructuredMedication) {
	if f.Medications != nil {
		f.Medications(meta, meds)
	}
}

func (f SinkFuncs) OnMedicalDataExtracted(meta Meta, data models.StructuredMedicalData) {
	if f.MedicalData != nil {
		f.MedicalData(meta, data)
	}
}

func (f SinkFuncs) OnUrgencyComputed(meta Meta, assessment models.UrgencyAssessment) {
	if f.Urgency != nil {
		f.Urgency(meta, assessment)
	}
}

func (f SinkFuncs) OnStatus(meta Meta, status string) {
	if f.Status != nil {
		f.Status(meta, status)
	}
}

// MultiSink fans every call out to each sink in order.
type MultiSink []Sink

func (m MultiSink) OnMedicationsExtracted(meta Meta, meds []models.StructuredMedication) {
	for _, s := range m {
		s.OnMedicationsExtracted(meta, meds)
	}
}

func (m MultiSink) OnMedicalDataExtracted(meta Meta, data models.StructuredMedicalData) {
	for _, s := range m {
		s.OnMedicalDataExtracted(meta, data)
	}
}

func (m MultiSink) OnUrgencyComputed(meta Meta, assessment models.UrgencyAssessment) {
	for _, s := range m {
		s.OnUrgencyComputed(meta, assessment)
	}
}

func (m MultiSink) OnStatus(meta Meta, status string) {
	for _, s := range m {
		s.OnStatus(meta, status)
	}
}
