package models

// Event types published for downstream consumers.
const (
	EventMedicationsExtracted = "dictation.medications.extracted"
	EventMedicalDataExtracted = "dictation.medical_data.extracted"
	EventUrgencyComputed      = "dictation.urgency.computed"
)

// MedicationsExtracted is emitted when a prescription dictation yields medications.
type MedicationsExtracted struct {
	EventType   string                 `json:"eventType"`
	SessionID   string                 `json:"sessionId"`
	Purpose     string                 `json:"purpose"`
	Timestamp   int64                  `json:"timestamp"`
	Medications []StructuredMedication `json:"medications"`
}

// MedicalDataExtracted is emitted when a transcript has been classified.
type MedicalDataExtracted struct {
	EventType string                `json:"eventType"`
	SessionID string                `json:"sessionId"`
	Purpose   string                `json:"purpose"`
	Timestamp int64                 `json:"timestamp"`
	Data      StructuredMedicalData `json:"data"`
}

// UrgencyComputed is emitted when a triage assessment is (re)computed.
type UrgencyComputed struct {
	EventType  string            `json:"eventType"`
	SessionID  string            `json:"sessionId"`
	Purpose    string            `json:"purpose"`
	Timestamp  int64             `json:"timestamp"`
	Assessment UrgencyAssessment `json:"assessment"`
}
