package dictation

import (
	"context"
	"testing"

	"clinical-dictation-service/internal/models"
)

func TestPipeline_ProcessPrescription(t *testing.T) {
	p := NewPipeline()
	text := "Amlodipine 5 mg once daily for 30 days next medication Metformin 500 mg twice daily for 60 days that's all"

	res, err := p.Process(context.Background(), StageMedications, text)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := []models.StructuredMedication{
		{Name: "Amlodipine", Dosage: "5mg", Frequency: "Once daily", Duration: "30 days"},
		{Name: "Metformin", Dosage: "500mg", Frequency: "Twice daily", Duration: "60 days"},
	}
	if len(res.Utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %d: %q", len(res.Utterances), res.Utterances)
	}
	if len(res.Medications) != len(want) {
		t.Fatalf("expected %d medications, got %d", len(want), len(res.Medications))
	}
	for i, w := range want {
		got := res.Medications[i]
		if got.Name != w.Name || got.Dosage != w.Dosage || got.Frequency != w.Frequency || got.Duration != w.Duration {
			t.Errorf("medication %d = %+v, want %+v", i, got, w)
		}
	}
	if res.MedicalData != nil || res.Urgency != nil {
		t.Error("expected only medications for StageMedications")
	}
}

func TestPipeline_ProcessTriage(t *testing.T) {
	p := NewPipeline()
	text := "Chief complaint is chest pain. Patient reports pain level 4 out of 10."

	res, err := p.Process(context.Background(), PurposeTriage.Stages(), text)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.MedicalData == nil || res.Urgency == nil {
		t.Fatalf("expected medical data and urgency, got %+v", res)
	}
	if res.Medications != nil {
		t.Error("expected no medications for triage")
	}
	if res.MedicalData.ChiefComplaint != "chest pain" {
		t.Errorf("chief complaint = %q, want %q", res.MedicalData.ChiefComplaint, "chest pain")
	}
	if res.MedicalData.PainLevel != "4" {
		t.Errorf("pain level = %q, want 4", res.MedicalData.PainLevel)
	}
	if res.Urgency.Score != 52 || res.Urgency.Level != models.UrgencyCritical {
		t.Errorf("urgency = %d/%s, want 52/critical", res.Urgency.Score, res.Urgency.Level)
	}
}

func TestPipeline_UrgencyWithoutMedicalData(t *testing.T) {
	p := NewPipeline()

	res, err := p.Process(context.Background(), StageUrgency, "Patient has a fever.")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.MedicalData != nil {
		t.Error("expected medical data to be omitted")
	}
	if res.Urgency == nil || res.Urgency.Score != 15 {
		t.Errorf("expected urgency score 15, got %+v", res.Urgency)
	}
}

func TestPipeline_ProcessCancelled(t *testing.T) {
	p := NewPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Process(ctx, StageAll, "Ibuprofen 200 mg next Paracetamol"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestPipeline_EmptyTranscript(t *testing.T) {
	p := NewPipeline()

	res, err := p.Process(context.Background(), StageAll, "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Medications) != 0 {
		t.Errorf("expected no medications, got %+v", res.Medications)
	}
	if res.MedicalData == nil || res.MedicalData.PainLevel != "0" {
		t.Errorf("expected empty medical data with pain 0, got %+v", res.MedicalData)
	}
}

func TestMergeMedications(t *testing.T) {
	a := []models.StructuredMedication{
		{Name: "Amlodipine", Dosage: "5mg", Frequency: "Once daily"},
	}
	b := []models.StructuredMedication{
		{Name: "amlodipine", Dosage: "5MG", Frequency: "once daily"},
		{Name: "Amlodipine", Dosage: "10mg", Frequency: "Once daily"},
		{Name: "Metformin", Dosage: "500mg", Frequency: "Twice daily"},
	}

	got := mergeMedications(a, b)
	if len(got) != 3 {
		t.Fatalf("expected 3 medications, got %d: %+v", len(got), got)
	}
	if got[0].Name != "Amlodipine" || got[1].Dosage != "10mg" || got[2].Name != "Metformin" {
		t.Errorf("unexpected merge order: %+v", got)
	}
}

func TestPurpose(t *testing.T) {
	tests := []struct {
		in     string
		want   Purpose
		stages Stage
	}{
		{"prescription", PurposePrescription, StageMedications},
		{" Triage ", PurposeTriage, StageMedicalData | StageUrgency},
		{"notes", PurposeNotes, StageMedicalData},
		{"diagnosis", PurposeDiagnosis, StageMedicalData},
	}
	for _, tt := range tests {
		got, err := ParsePurpose(tt.in)
		if err != nil {
			t.Fatalf("ParsePurpose(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParsePurpose(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got.Stages() != tt.stages {
			t.Errorf("%s.Stages() = %b, want %b", got, got.Stages(), tt.stages)
		}
	}

	if _, err := ParsePurpose("billing"); err == nil {
		t.Error("expected error for unknown purpose")
	}
}
