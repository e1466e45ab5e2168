package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

const maxPain = 10

var painNumericRe = regexp.MustCompile(`(?i)\bpain\s+(?:level|score|rating)\s*(?:is|of|at|was|:)?\s*(?:of\s+|at\s+)?(\d{1,3})\b` +
	`|\b(\d{1,3})\s*(?:out\s+of|/)\s*10\b` +
	`|\brated\s+(?:at\s+|as\s+)?(\d{1,3})\b`)

// Checked in order; the first phrase found wins.
var painPhrases = []struct {
	phrase string
	level  int
}{
	{"worst possible pain", 10},
	{"unbearable pain", 9},
	{"excruciating pain", 9},
	{"severe pain", 8},
	{"moderate pain", 5},
	{"mild pain", 3},
	{"slight pain", 2},
	{"minimal pain", 1},
	{"no pain", 0},
}

// PainLevel returns the reported pain in [0,10]. Explicit numbers win over
// descriptive phrases; no mention yields 0.
func PainLevel(text string) int {
	if m := painNumericRe.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			n, err := strconv.Atoi(g)
			if err != nil {
				break
			}
			return clamp(n)
		}
	}

	lower := strings.ToLower(strings.Join(strings.Fields(text), " "))
	for _, p := range painPhrases {
		if strings.Contains(lower, p.phrase) {
			return p.level
		}
	}
	return 0
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > maxPain {
		return maxPain
	}
	return n
}
