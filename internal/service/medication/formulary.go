package medication

import (
	"fmt"
	"os"
	"strings"

	"github.com/antzucaro/matchr"
	"gopkg.in/yaml.v3"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Formulary corrects misheard drug names against a list of known names.
//
// Candidates must share a Double Metaphone code with the spoken name and
// clear a Jaro-Winkler threshold. Without a phonetic overlap a stricter
// pure Jaro-Winkler threshold applies. Read-only after construction.
type Formulary struct {
	names             []string
	codes             []map[string]struct{}
	phoneticThreshold float64
	fuzzyThreshold    float64
}

type formularyFile struct {
	Medications []string `yaml:"medications"`
}

// NewFormulary builds a formulary from known medication names.
func NewFormulary(names []string) *Formulary {
	f := &Formulary{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	seen := make(map[string]bool)
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		f.names = append(f.names, n)
		f.codes = append(f.codes, codesFor(strings.Fields(key)))
	}
	return f
}

// LoadFormulary reads a YAML file of the form `medications: [..]`.
func LoadFormulary(path string) (*Formulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formulary %s: %w", path, err)
	}
	var ff formularyFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse formulary %s: %w", path, err)
	}
	return NewFormulary(ff.Medications), nil
}

// Len returns the number of known names.
func (f *Formulary) Len() int {
	return len(f.names)
}

// Names returns the known names in load order.
func (f *Formulary) Names() []string {
	return append([]string(nil), f.names...)
}

// Correct returns the best formulary match for name. When nothing clears
// the thresholds it returns name unchanged and false.
func (f *Formulary) Correct(name string) (string, bool) {
	spoken := strings.ToLower(strings.TrimSpace(name))
	if spoken == "" || len(f.names) == 0 {
		return name, false
	}

	spokenCodes := codesFor(strings.Fields(spoken))

	bestIdx := -1
	bestScore := 0.0
	bestPhonetic := false
	for i, known := range f.names {
		score := matchr.JaroWinkler(spoken, strings.ToLower(known), false)
		if overlaps(spokenCodes, f.codes[i]) {
			if score >= f.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				bestIdx, bestScore, bestPhonetic = i, score, true
			}
		} else if !bestPhonetic && score >= f.fuzzyThreshold && score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	if bestIdx < 0 {
		return name, false
	}
	return f.names[bestIdx], true
}

func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
