// Package triage scores how urgently a patient should be seen.
//
// The score is an additive keyword heuristic, not a validated clinical
// instrument. Score is pure and deterministic.
package triage

import (
	"regexp"
	"strconv"
	"strings"

	"clinical-dictation-service/internal/models"
)

const (
	DefaultTest       = "Vital Signs Monitoring"
	DefaultSpecialist = "General Practitioner"

	painMultiplier = 3
	maxPain        = 10
)

type group struct {
	name       string
	match      *regexp.Regexp
	points     int
	tests      []string
	specialist string
}

// Evaluated in order; the first group that names a specialist sets it.
var groups = []group{
	{
		name:       "cardiac",
		match:      regexp.MustCompile(`(?i)\bchest\s+pain|\bbreathing\s+difficult\w*|\bdifficult\w*\s+breathing|\bshort(?:ness)?\s+of\s+breath`),
		points:     40,
		tests:      []string{"ECG", "Chest X-Ray", "Cardiac Enzymes"},
		specialist: "Cardiologist",
	},
	{
		name:       "neurological",
		match:      regexp.MustCompile(`(?i)\bsevere\s+headache|\bunconscious|\bseizures?\b`),
		points:     35,
		tests:      []string{"CT Scan", "Neurological Assessment"},
		specialist: "Neurologist",
	},
	{
		name:   "trauma",
		match:  regexp.MustCompile(`(?i)\bbleed\w*|\binjur\w*|\btrauma\w*`),
		points: 30,
		tests:  []string{"Complete Blood Count", "Imaging"},
	},
	{
		name:   "infection",
		match:  regexp.MustCompile(`(?i)\bfever\w*|\binfect\w*`),
		points: 15,
		tests:  []string{"Blood Culture", "Complete Blood Count"},
	},
}

type tier struct {
	min   int
	level models.UrgencyLevel
	wait  string
}

// Highest threshold first; bounds are inclusive.
var tiers = []tier{
	{50, models.UrgencyCritical, "Immediate"},
	{30, models.UrgencyHigh, "5-15 minutes"},
	{15, models.UrgencyMedium, "15-30 minutes"},
	{0, models.UrgencyLow, "30-45 minutes"},
}

// Score assesses symptom text and a pain level. Pain outside [0,10] is clamped.
func Score(symptomsText string, painLevel int) models.UrgencyAssessment {
	score := 0
	var tests []string
	specialist := ""

	for _, g := range groups {
		if !g.match.MatchString(symptomsText) {
			continue
		}
		score += g.points
		tests = appendUnique(tests, g.tests...)
		if specialist == "" {
			specialist = g.specialist
		}
	}

	score += clampPain(painLevel) * painMultiplier

	if len(tests) == 0 {
		tests = []string{DefaultTest}
	}
	if specialist == "" {
		specialist = DefaultSpecialist
	}

	t := tierFor(score)
	return models.UrgencyAssessment{
		Score:                 score,
		Level:                 t.level,
		RecommendedTests:      tests,
		RecommendedSpecialist: specialist,
		EstimatedWaitTime:     t.wait,
	}
}

// ScoreData scores the chief complaint and symptoms of classified data.
// An unparsable pain level counts as 0.
func ScoreData(data models.StructuredMedicalData) models.UrgencyAssessment {
	parts := make([]string, 0, len(data.Symptoms)+1)
	if data.ChiefComplaint != "" {
		parts = append(parts, data.ChiefComplaint)
	}
	parts = append(parts, data.Symptoms...)

	pain, err := strconv.Atoi(strings.TrimSpace(data.PainLevel))
	if err != nil {
		pain = 0
	}
	return Score(strings.Join(parts, ". "), pain)
}

// Groups returns the names of the keyword groups the text triggers.
func Groups(symptomsText string) []string {
	var names []string
	for _, g := range groups {
		if g.match.MatchString(symptomsText) {
			names = append(names, g.name)
		}
	}
	return names
}

func tierFor(score int) tier {
	for _, t := range tiers {
		if score >= t.min {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

func clampPain(p int) int {
	if p < 0 {
		return 0
	}
	if p > maxPain {
		return maxPain
	}
	return p
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		dup := false
		for _, d := range dst {
			if d == it {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, it)
		}
	}
	return dst
}
