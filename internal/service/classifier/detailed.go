package classifier

import (
	"regexp"
	"strings"
)

var (
	detailedRe = regexp.MustCompile(`(?i)\b([a-z][a-z\-]+)\s+(\d+(?:\.\d+)?)\s*(mg|mcg|g|ml|units?|iu)\b\s*` +
		`((?:once|twice|thrice|three\s+times|four\s+times)\s+(?:a\s+|per\s+)?(?:day|daily|week|weekly)` +
		`|daily|nightly|bid|tid|qid|prn|as\s+needed|at\s+night|every\s+\d+\s+hours?)\b`)

	doseRe = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:` + doseUnits + `)\b`)

	nameStopwords = map[string]bool{
		"takes": true, "taking": true, "take": true, "of": true, "on": true, "is": true,
		"was": true, "prescribed": true, "about": true, "and": true, "dose": true,
	}
)

// DetailedMedications finds "<name> <dose><unit> <frequency>" mentions
// anywhere in the text, formatted as "Name 500mg twice daily".
func DetailedMedications(text string) []string {
	var out []string
	for _, m := range detailedRe.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[1])
		if nameStopwords[name] {
			continue
		}
		freq := strings.ToLower(strings.Join(strings.Fields(m[4]), " "))
		out = append(out, strings.ToUpper(name[:1])+name[1:]+" "+m[2]+strings.ToLower(m[3])+" "+freq)
	}
	return out
}

// mergeDetailed drops generic entries that share their leading token with
// a detailed entry and carry no dosage, then appends the detailed entries.
func mergeDetailed(generic, detailed []string) []string {
	if len(detailed) == 0 {
		return generic
	}

	leads := make(map[string]bool, len(detailed))
	for _, d := range detailed {
		leads[leadingToken(d)] = true
	}

	out := make([]string, 0, len(generic)+len(detailed))
	for _, g := range generic {
		if leads[leadingToken(g)] && !doseRe.MatchString(g) {
			continue
		}
		out = append(out, g)
	}
	return append(out, detailed...)
}

func leadingToken(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(f[0], ".,;:"))
}
