package segment

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Phrases holds the spoken command phrases that delimit utterances.
type Phrases struct {
	// Advance phrases close the current utterance and start the next one.
	Advance []string `yaml:"advance"`
	// Terminate phrases close the current utterance and end the scan.
	Terminate []string `yaml:"terminate"`
}

// DefaultPhrases returns the built-in command vocabulary.
func DefaultPhrases() Phrases {
	return Phrases{
		Advance: []string{
			"next medication",
			"next medicine",
			"next drug",
			"add another",
			"another medication",
			"next",
		},
		Terminate: []string{
			"that's all",
			"that is all",
			"end dictation",
			"stop dictation",
			"finished",
			"finish",
			"complete",
			"done",
			"end",
		},
	}
}

// LoadPhrases reads a YAML phrases file. Lists missing from the file keep
// their defaults.
func LoadPhrases(path string) (Phrases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Phrases{}, fmt.Errorf("read phrases file %s: %w", path, err)
	}

	var p Phrases
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Phrases{}, fmt.Errorf("parse phrases file %s: %w", path, err)
	}

	def := DefaultPhrases()
	if len(p.Advance) == 0 {
		p.Advance = def.Advance
	}
	if len(p.Terminate) == 0 {
		p.Terminate = def.Terminate
	}
	return p, nil
}

// normalizePhrase lowercases and collapses whitespace.
func normalizePhrase(s string) string {
	return strings.Join(strings.Fields(asciiLower(s)), " ")
}
