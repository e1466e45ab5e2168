package medication

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"clinical-dictation-service/internal/models"
)

// Rule is one step of the extraction chain. Apply reports whether the
// utterance matched; a miss is not an error.
type Rule struct {
	Name  string
	Apply func(utterance string) (models.StructuredMedication, bool)
}

// Rule names, also used as metric labels.
const (
	RuleFull     = "full"
	RuleSimple   = "simple"
	RuleFallback = "fallback"
)

const (
	autoPopulated       = "Auto-populated from dictation"
	autoPopulatedVerify = "Auto-populated from dictation - please verify"
	unspecifiedName     = "Unspecified medication"
)

const (
	namePattern = `(?P<name>[a-z][a-z0-9\-]*(?:\s+[a-z][a-z0-9\-]*){0,2}?)`
	unitPattern = `mcg|mg|g|ml|units?|iu|tablets?|capsules?|puffs?|drops?`
)

var (
	fullRe = regexp.MustCompile(`(?i)^\s*` + namePattern +
		`\s+(?P<amount>\d+(?:\.\d+)?)\s*(?P<unit>` + unitPattern + `)\b` +
		`(?:\s+(?:(?P<times>once|twice|thrice|three\s+times|four\s+times)\s+(?:a\s+|an\s+|per\s+|every\s+)?(?P<period>daily|day|weekly|week|monthly|month)|every\s+(?P<hours>\d+)\s+hours?))?` +
		`\s+for\s+(?P<dval>\d+)\s+(?P<dunit>days?|weeks?|months?)\b`)

	datesRe = regexp.MustCompile(`(?i)^\s*,?\s*starting\s+(?:on\s+|from\s+)?(?P<start>.+?)(?:\s+(?:to|until|through)\s+(?P<end>.+?))?\s*[.,]?\s*$`)

	simpleRe = regexp.MustCompile(`(?i)^\s*` + namePattern +
		`\s+(?P<amount>\d+(?:\.\d+)?)\s*(?P<unit>` + unitPattern + `)?(?:\b|$)`)

	leadInRe = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:prescribe|prescribing|give|add|take|start\s+(?:patient\s+)?on|patient\s+(?:is\s+)?on)\s+`)
)

// DefaultRules returns the full-pattern and simple-pattern rules in order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleFull, Apply: applyFull},
		{Name: RuleSimple, Apply: applySimple},
	}
}

func applyFull(utterance string) (models.StructuredMedication, bool) {
	text := stripLeadIn(utterance)
	m := fullRe.FindStringSubmatchIndex(text)
	if m == nil {
		return models.StructuredMedication{}, false
	}
	group := func(name string) string {
		i := fullRe.SubexpIndex(name)
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}

	med := models.StructuredMedication{
		Name:         capitalize(group("name")),
		Dosage:       group("amount") + strings.ToLower(group("unit")),
		Frequency:    normalizeFrequency(group("times"), group("period"), group("hours")),
		Duration:     group("dval") + " " + strings.ToLower(group("dunit")),
		Instructions: autoPopulated,
	}

	if dm := datesRe.FindStringSubmatch(text[m[1]:]); dm != nil {
		instr := "Start: " + strings.TrimSpace(dm[datesRe.SubexpIndex("start")])
		if end := strings.TrimSpace(dm[datesRe.SubexpIndex("end")]); end != "" {
			instr += ", End: " + end
		}
		med.Instructions = instr
	}
	return med, true
}

func applySimple(utterance string) (models.StructuredMedication, bool) {
	text := stripLeadIn(utterance)
	m := simpleRe.FindStringSubmatch(text)
	if m == nil {
		return models.StructuredMedication{}, false
	}
	return models.StructuredMedication{
		Name:         capitalize(m[simpleRe.SubexpIndex("name")]),
		Dosage:       m[simpleRe.SubexpIndex("amount")] + strings.ToLower(m[simpleRe.SubexpIndex("unit")]),
		Frequency:    models.DefaultFrequency,
		Duration:     models.DefaultDuration,
		Instructions: autoPopulatedVerify,
	}, true
}

// fallback never misses: it keeps the first one to three words as the name
// and the verbatim utterance as instructions.
func fallback(utterance string) models.StructuredMedication {
	trimmed := strings.TrimSpace(utterance)

	var words []string
	for _, w := range strings.Fields(stripLeadIn(trimmed)) {
		w = strings.Trim(w, ".,;:!?\"()[]")
		if w == "" {
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}

	name := capitalize(strings.Join(words, " "))
	if name == "" {
		name = trimmed
	}
	if name == "" {
		name = unspecifiedName
	}

	return models.StructuredMedication{
		Name:         name,
		Frequency:    models.DefaultFrequency,
		Duration:     models.DefaultDuration,
		Instructions: `From dictation: "` + trimmed + `"`,
	}
}

func normalizeFrequency(times, period, hours string) string {
	if hours != "" {
		return "Every " + hours + " hours"
	}
	if times == "" {
		return models.DefaultFrequency
	}

	var t string
	switch strings.Join(strings.Fields(strings.ToLower(times)), " ") {
	case "once":
		t = "Once"
	case "twice":
		t = "Twice"
	case "thrice", "three times":
		t = "Three times"
	case "four times":
		t = "Four times"
	}

	var p string
	switch strings.ToLower(period) {
	case "daily", "day":
		p = "daily"
	case "weekly", "week":
		p = "weekly"
	case "monthly", "month":
		p = "monthly"
	}
	return t + " " + p
}

func stripLeadIn(s string) string {
	return leadInRe.ReplaceAllString(s, "")
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
