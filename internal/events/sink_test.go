package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/service/dictation"
)

type testPublisher struct {
	meds    []models.MedicationsExtracted
	data    []models.MedicalDataExtracted
	urgency []models.UrgencyComputed
	err     error
}

func (p *testPublisher) PublishMedications(ctx context.Context, e models.MedicationsExtracted) error {
	p.meds = append(p.meds, e)
	return p.err
}

func (p *testPublisher) PublishMedicalData(ctx context.Context, e models.MedicalDataExtracted) error {
	p.data = append(p.data, e)
	return p.err
}

func (p *testPublisher) PublishUrgency(ctx context.Context, e models.UrgencyComputed) error {
	p.urgency = append(p.urgency, e)
	return p.err
}

func newTestSink(p EventPublisher) *EventSink {
	s := NewEventSink(p)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestEventSink_BuildsEnvelopes(t *testing.T) {
	pub := &testPublisher{}
	s := newTestSink(pub)
	meta := dictation.Meta{SessionID: "sess-7", Purpose: dictation.PurposeTriage}

	s.OnMedicationsExtracted(meta, []models.StructuredMedication{{Name: "Aspirin"}})
	s.OnMedicalDataExtracted(meta, models.NewStructuredMedicalData())
	s.OnUrgencyComputed(meta, models.UrgencyAssessment{Score: 52, Level: models.UrgencyCritical})
	s.OnStatus(meta, dictation.StatusComplete)

	if len(pub.meds) != 1 || len(pub.data) != 1 || len(pub.urgency) != 1 {
		t.Fatalf("expected one event per kind, got %d/%d/%d", len(pub.meds), len(pub.data), len(pub.urgency))
	}

	m := pub.meds[0]
	if m.EventType != models.EventMedicationsExtracted || m.SessionID != "sess-7" || m.Purpose != "triage" {
		t.Errorf("unexpected medications envelope: %+v", m)
	}
	if m.Timestamp != 1700000000000 {
		t.Errorf("expected timestamp from clock, got %d", m.Timestamp)
	}
	if pub.data[0].EventType != models.EventMedicalDataExtracted {
		t.Errorf("unexpected medical data event type %s", pub.data[0].EventType)
	}
	if u := pub.urgency[0]; u.EventType != models.EventUrgencyComputed || u.Assessment.Score != 52 {
		t.Errorf("unexpected urgency event: %+v", u)
	}
}

func TestEventSink_PublishErrorIsSwallowed(t *testing.T) {
	pub := &testPublisher{err: errors.New("broker down")}
	s := newTestSink(pub)

	s.OnMedicationsExtracted(dictation.Meta{SessionID: "s"}, []models.StructuredMedication{{Name: "Aspirin"}})

	if len(pub.meds) != 1 {
		t.Errorf("expected publish attempt, got %d", len(pub.meds))
	}
}

func TestEventSink_WithDisabledPublisher(t *testing.T) {
	s := NewEventSink(New(&Config{Enabled: false}))
	meta := dictation.Meta{SessionID: "sess-1", Purpose: dictation.PurposeNotes}

	// Log-only publishing must not panic on real envelopes.
	s.OnMedicalDataExtracted(meta, models.NewStructuredMedicalData())
	s.OnStatus(meta, dictation.StatusProcessing)
}
