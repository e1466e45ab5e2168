package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"clinical-dictation-service/internal/models"
)

func TestTriageCmd(t *testing.T) {
	cmd := triageCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--symptoms", "crushing chest pain", "--pain", "4"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("triage failed: %v", err)
	}

	var a models.UrgencyAssessment
	if err := json.Unmarshal(out.Bytes(), &a); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if a.Score != 52 || a.Level != models.UrgencyCritical {
		t.Errorf("expected 52/critical, got %d/%s", a.Score, a.Level)
	}
}

func TestExtractCmd_Stdin(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ADDR", "")

	cmd := extractCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("Amlodipine 5 mg once daily for 30 days next medication Metformin 500 mg twice daily for 60 days that's all"))
	cmd.SetArgs([]string{"--purpose", "prescription"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	var res extractOutput
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if res.Purpose != "prescription" {
		t.Errorf("expected prescription purpose, got %s", res.Purpose)
	}
	if len(res.Medications) != 2 {
		t.Fatalf("expected 2 medications, got %+v", res.Medications)
	}
	if res.Medications[0].Name != "Amlodipine" {
		t.Errorf("expected Amlodipine first, got %s", res.Medications[0].Name)
	}
	if res.MedicalData != nil || res.Urgency != nil {
		t.Error("prescription purpose should only produce medications")
	}
}

func TestExtractCmd_UnknownPurpose(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	cmd := extractCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("text"))
	cmd.SetArgs([]string{"--purpose", "surgery"})

	if err := cmd.Execute(); err == nil {
		t.Error("expected error for unknown purpose")
	}
}
