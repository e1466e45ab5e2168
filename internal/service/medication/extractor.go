// Package medication turns dictated utterances into structured prescriptions.
//
// Parsing runs an ordered chain of pattern rules and stops at the first
// match. When every rule misses, a bare-name fallback keeps the utterance
// verbatim, so each non-empty utterance yields exactly one record.
package medication

import (
	"strings"

	"clinical-dictation-service/internal/models"
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithFormulary enables correction of misheard names.
func WithFormulary(f *Formulary) Option {
	return func(e *Extractor) {
		e.formulary = f
	}
}

// WithRules replaces the rule chain. The bare-name fallback always runs last.
func WithRules(rules ...Rule) Option {
	return func(e *Extractor) {
		e.rules = rules
	}
}

// Extractor parses utterances. Safe for concurrent use.
type Extractor struct {
	rules     []Rule
	formulary *Formulary
}

// NewExtractor creates an extractor with the default rule chain.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{rules: DefaultRules()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Parse returns the medication record for one utterance. It never fails.
func (e *Extractor) Parse(utterance string) models.StructuredMedication {
	med, _ := e.ParseWithRule(utterance)
	return med
}

// ParseWithRule is Parse plus the name of the rule that produced the record.
func (e *Extractor) ParseWithRule(utterance string) (models.StructuredMedication, string) {
	med, rule := fallback(utterance), RuleFallback
	for _, r := range e.rules {
		if m, ok := r.Apply(utterance); ok && strings.TrimSpace(m.Name) != "" {
			med, rule = m, r.Name
			break
		}
	}

	if e.formulary != nil && med.Name != unspecifiedName {
		if corrected, ok := e.formulary.Correct(med.Name); ok {
			med.Name = corrected
		}
	}
	return med, rule
}

// ExtractAll parses every non-blank utterance in order.
func (e *Extractor) ExtractAll(utterances []string) []models.StructuredMedication {
	out := make([]models.StructuredMedication, 0, len(utterances))
	for _, u := range utterances {
		if strings.TrimSpace(u) == "" {
			continue
		}
		out = append(out, e.Parse(u))
	}
	return out
}
