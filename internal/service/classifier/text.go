package classifier

import (
	"regexp"
	"strings"
	"unicode"
)

var unitTypos = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bmilligrams?\b`), "mg"},
	{regexp.MustCompile(`(?i)\bmgs\b`), "mg"},
	{regexp.MustCompile(`(?i)(\d)\s*m\.\s?g\b\.?`), "${1} mg"},
	{regexp.MustCompile(`(?i)(\d)\s*m g\b`), "${1} mg"},
	{regexp.MustCompile(`(?i)\bmicrograms?\b`), "mcg"},
	{regexp.MustCompile(`(?i)\bmillilit(?:er|re)s?\b`), "ml"},
}

// NormalizeUnits rewrites spelled-out and misheard dosage units to their
// short forms.
func NormalizeUnits(text string) string {
	for _, t := range unitTypos {
		text = t.re.ReplaceAllString(text, t.repl)
	}
	return text
}

// SplitSentences splits on terminal punctuation and newlines. A period
// between two digits is a decimal point, not a boundary. Returned
// sentences are whitespace-collapsed and never empty.
func SplitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	flush := func(end int) {
		if s := collapse(text[start:end]); s != "" {
			out = append(out, s)
		}
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.':
			if i > 0 && i+1 < len(text) && isDigit(text[i-1]) && isDigit(text[i+1]) {
				continue
			}
			flush(i)
			start = i + 1
		case '!', '?', ';', '\n', '\r':
			flush(i)
			start = i + 1
		}
	}
	flush(len(text))
	return out
}

func collapse(s string) string {
	return trimTerminal(strings.Join(strings.Fields(s), " "))
}

func trimTerminal(s string) string {
	return strings.TrimRightFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsPunct(r) && r != ')' && r != '"' && r != '\''
	})
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
