// Package classifier sorts the sentences of a clinical transcript into
// chief complaint, symptoms, allergies, medications and medical history,
// and resolves the patient's reported pain level.
package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"clinical-dictation-service/internal/models"
)

// Category is the bucket a sentence was assigned to.
type Category string

const (
	CategoryAllergy    Category = "allergy"
	CategoryMedication Category = "medication"
	CategoryHistory    Category = "history"
	CategorySymptom    Category = "symptom"
	CategoryNone       Category = "none"
)

// Sentence is one classified sentence of a transcript.
type Sentence struct {
	Text     string
	Category Category
}

// Analysis is the classified transcript plus the per-sentence breakdown.
type Analysis struct {
	Data      models.StructuredMedicalData
	Sentences []Sentence
}

type categoryRule struct {
	category Category
	match    *regexp.Regexp
}

// Classifier is stateless and safe for concurrent use.
type Classifier struct {
	rules []categoryRule
}

// New returns a classifier with the rules evaluated in priority order:
// allergy, medication, history, symptom.
func New() *Classifier {
	return &Classifier{
		rules: []categoryRule{
			{CategoryAllergy, allergyRe},
			{CategoryMedication, medicationRe},
			{CategoryHistory, historyRe},
			{CategorySymptom, symptomRe},
		},
	}
}

// Classify never fails. Unmatched sentences are dropped.
func (c *Classifier) Classify(transcript string) models.StructuredMedicalData {
	return c.Analyze(transcript).Data
}

// Analyze classifies the transcript and keeps the sentence breakdown.
func (c *Classifier) Analyze(transcript string) Analysis {
	text := NormalizeUnits(transcript)
	data := models.NewStructuredMedicalData()

	var (
		sentences []Sentence
		severe    string
	)
	for _, s := range SplitSentences(text) {
		cat := c.Categorize(s)
		sentences = append(sentences, Sentence{Text: s, Category: cat})

		switch cat {
		case CategoryAllergy:
			data.Allergies = append(data.Allergies, s)
		case CategoryMedication:
			data.Medications = append(data.Medications, s)
		case CategoryHistory:
			data.MedicalHistory = append(data.MedicalHistory, s)
		case CategorySymptom:
			data.Symptoms = append(data.Symptoms, s)
			if severe == "" && severityRe.MatchString(s) {
				severe = s
			}
		}
	}

	data.Medications = mergeDetailed(data.Medications, DetailedMedications(text))

	data.Symptoms = dedupe(data.Symptoms)
	data.Allergies = dedupe(data.Allergies)
	data.Medications = dedupe(data.Medications)
	data.MedicalHistory = dedupe(data.MedicalHistory)

	switch explicit := explicitComplaint(text); {
	case explicit != "":
		data.ChiefComplaint = explicit
	case severe != "":
		data.ChiefComplaint = severe
	case len(data.Symptoms) > 0:
		data.ChiefComplaint = data.Symptoms[0]
	}

	data.PainLevel = strconv.Itoa(PainLevel(text))

	return Analysis{Data: data, Sentences: sentences}
}

// Categorize returns the first category whose rule matches the sentence.
func (c *Classifier) Categorize(sentence string) Category {
	for _, r := range c.rules {
		if r.match.MatchString(sentence) {
			return r.category
		}
	}
	return CategoryNone
}

func explicitComplaint(text string) string {
	m := complaintRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(trimTerminal(m[1]))
}

// dedupe keeps the first occurrence of each entry, ignoring case.
func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
