package models

// Placeholders applied when a dictated medication omits frequency or duration.
const (
	DefaultFrequency = "Once daily"
	DefaultDuration  = "30 days"
	DefaultPainLevel = "0"
)

// StructuredMedication is a single prescription line parsed from dictation.
// Name is always non-empty; the other fields may hold placeholders.
type StructuredMedication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// StructuredMedicalData is the categorized content of a clinical transcript.
// Every list is de-duplicated in first-seen order.
type StructuredMedicalData struct {
	ChiefComplaint string   `json:"chiefComplaint"`
	Symptoms       []string `json:"symptoms"`
	Allergies      []string `json:"allergies"`
	Medications    []string `json:"medications"`
	MedicalHistory []string `json:"medicalHistory"`
	PainLevel      string   `json:"painLevel"`
}

// NewStructuredMedicalData returns an empty record with non-nil lists and the default pain level.
func NewStructuredMedicalData() StructuredMedicalData {
	return StructuredMedicalData{
		Symptoms:       []string{},
		Allergies:      []string{},
		Medications:    []string{},
		MedicalHistory: []string{},
		PainLevel:      DefaultPainLevel,
	}
}

// UrgencyLevel is the severity tier of a triage assessment.
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "critical"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyLow      UrgencyLevel = "low"
)

// UrgencyAssessment is derived from symptoms and pain level. It is never
// mutated after creation; new input produces a new assessment.
type UrgencyAssessment struct {
	Score                 int          `json:"score"`
	Level                 UrgencyLevel `json:"level"`
	RecommendedTests      []string     `json:"recommendedTests"`
	RecommendedSpecialist string       `json:"recommendedSpecialist"`
	EstimatedWaitTime     string       `json:"estimatedWaitTime"`
}
