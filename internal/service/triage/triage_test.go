package triage

import (
	"reflect"
	"testing"

	"clinical-dictation-service/internal/models"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name           string
		symptoms       string
		pain           int
		wantScore      int
		wantLevel      models.UrgencyLevel
		wantTests      []string
		wantSpecialist string
		wantWait       string
	}{
		{
			name:           "chest pain without pain level is high",
			symptoms:       "Patient reports chest pain",
			pain:           0,
			wantScore:      40,
			wantLevel:      models.UrgencyHigh,
			wantTests:      []string{"ECG", "Chest X-Ray", "Cardiac Enzymes"},
			wantSpecialist: "Cardiologist",
			wantWait:       "5-15 minutes",
		},
		{
			name:           "chest pain with pain 4 is critical",
			symptoms:       "Patient reports chest pain",
			pain:           4,
			wantScore:      52,
			wantLevel:      models.UrgencyCritical,
			wantTests:      []string{"ECG", "Chest X-Ray", "Cardiac Enzymes"},
			wantSpecialist: "Cardiologist",
			wantWait:       "Immediate",
		},
		{
			name:           "no keywords uses defaults",
			symptoms:       "mild runny nose",
			pain:           1,
			wantScore:      3,
			wantLevel:      models.UrgencyLow,
			wantTests:      []string{"Vital Signs Monitoring"},
			wantSpecialist: "General Practitioner",
			wantWait:       "30-45 minutes",
		},
		{
			name:           "fever alone is medium",
			symptoms:       "high fever since last night",
			pain:           0,
			wantScore:      15,
			wantLevel:      models.UrgencyMedium,
			wantTests:      []string{"Blood Culture", "Complete Blood Count"},
			wantSpecialist: "General Practitioner",
			wantWait:       "15-30 minutes",
		},
		{
			name:           "trauma and infection share blood count once",
			symptoms:       "bleeding wound with signs of infection",
			pain:           0,
			wantScore:      45,
			wantLevel:      models.UrgencyHigh,
			wantTests:      []string{"Complete Blood Count", "Imaging", "Blood Culture"},
			wantSpecialist: "General Practitioner",
			wantWait:       "5-15 minutes",
		},
		{
			name:           "cardiologist wins over neurologist",
			symptoms:       "shortness of breath followed by a seizure",
			pain:           0,
			wantScore:      75,
			wantLevel:      models.UrgencyCritical,
			wantTests:      []string{"ECG", "Chest X-Ray", "Cardiac Enzymes", "CT Scan", "Neurological Assessment"},
			wantSpecialist: "Cardiologist",
			wantWait:       "Immediate",
		},
		{
			name:           "pain is clamped",
			symptoms:       "",
			pain:           25,
			wantScore:      30,
			wantLevel:      models.UrgencyHigh,
			wantTests:      []string{"Vital Signs Monitoring"},
			wantSpecialist: "General Practitioner",
			wantWait:       "5-15 minutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.symptoms, tt.pain)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %q, want %q", got.Level, tt.wantLevel)
			}
			if !reflect.DeepEqual(got.RecommendedTests, tt.wantTests) {
				t.Errorf("RecommendedTests = %q, want %q", got.RecommendedTests, tt.wantTests)
			}
			if got.RecommendedSpecialist != tt.wantSpecialist {
				t.Errorf("RecommendedSpecialist = %q, want %q", got.RecommendedSpecialist, tt.wantSpecialist)
			}
			if got.EstimatedWaitTime != tt.wantWait {
				t.Errorf("EstimatedWaitTime = %q, want %q", got.EstimatedWaitTime, tt.wantWait)
			}
		})
	}
}

func TestScore_ThresholdBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  models.UrgencyLevel
	}{
		{50, models.UrgencyCritical},
		{49, models.UrgencyHigh},
		{30, models.UrgencyHigh},
		{29, models.UrgencyMedium},
		{15, models.UrgencyMedium},
		{14, models.UrgencyLow},
		{0, models.UrgencyLow},
	}
	for _, tt := range tests {
		if got := tierFor(tt.score).level; got != tt.want {
			t.Errorf("tierFor(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestScore_Idempotent(t *testing.T) {
	a := Score("severe headache and fever", 6)
	b := Score("severe headache and fever", 6)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Score not deterministic: %+v vs %+v", a, b)
	}
}

func TestScoreData(t *testing.T) {
	data := models.NewStructuredMedicalData()
	data.ChiefComplaint = "Patient reports severe chest pain"
	data.Symptoms = []string{"Patient reports severe chest pain", "Mild fever"}
	data.PainLevel = "7"

	got := ScoreData(data)
	if got.Score != 40+15+21 {
		t.Errorf("Score = %d, want 76", got.Score)
	}
	if got.Level != models.UrgencyCritical {
		t.Errorf("Level = %q, want critical", got.Level)
	}

	data.PainLevel = "unknown"
	if got := ScoreData(data); got.Score != 55 {
		t.Errorf("Score with bad pain level = %d, want 55", got.Score)
	}
}

func TestGroups(t *testing.T) {
	got := Groups("chest pain after a fall with bleeding")
	want := []string{"cardiac", "trauma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Groups() = %q, want %q", got, want)
	}
}
