package segment

import "strings"

type command struct {
	phrase    string
	terminate bool
}

// Segmenter splits a finalized transcript on spoken command phrases.
// It is read-only after construction and safe for concurrent use.
type Segmenter struct {
	commands []command
}

// Result describes one scan over a transcript.
type Result struct {
	// Utterances are the non-empty spans closed by a command phrase, in order.
	Utterances []string
	// Remainder is the trimmed text after the last command phrase. It is empty
	// when the scan was terminated.
	Remainder string
	// Consumed is the byte offset just past the last matched command phrase,
	// or len(text) when a terminate phrase was matched.
	Consumed int
	// Commands is the number of command phrases matched.
	Commands int
	// Last is the normalized phrase of the last command matched.
	Last string
	// Terminated reports whether a terminate phrase ended the scan.
	Terminated bool
}

// NewSegmenter builds a segmenter. Phrases are matched case-insensitively;
// duplicates and blanks are dropped. A phrase listed as both advance and
// terminate is treated as terminate.
func NewSegmenter(p Phrases) *Segmenter {
	index := make(map[string]int)
	s := &Segmenter{}
	add := func(raw string, terminate bool) {
		phrase := normalizePhrase(raw)
		if phrase == "" {
			return
		}
		if i, ok := index[phrase]; ok {
			s.commands[i].terminate = s.commands[i].terminate || terminate
			return
		}
		index[phrase] = len(s.commands)
		s.commands = append(s.commands, command{phrase: phrase, terminate: terminate})
	}
	addAll := func(raw string, terminate bool) {
		add(raw, terminate)
		// Recognizers often emit typographic apostrophes.
		if strings.Contains(raw, "'") {
			add(strings.ReplaceAll(raw, "'", "\u2019"), terminate)
		}
	}
	for _, a := range p.Advance {
		addAll(a, false)
	}
	for _, t := range p.Terminate {
		addAll(t, true)
	}
	return s
}

// Segment returns the utterances of a complete dictation. Trailing text after
// the last advance phrase counts as the final utterance. A transcript without
// any command phrase is returned whole.
func (s *Segmenter) Segment(text string) []string {
	res := s.Scan(text)
	out := res.Utterances
	if res.Remainder != "" {
		out = append(out, res.Remainder)
	}
	return out
}

// Scan walks text from left to right, cutting at each command phrase.
// At any position the earliest match wins; matches starting at the same
// offset resolve to the longest phrase.
func (s *Segmenter) Scan(text string) Result {
	res := Result{}
	lower := asciiLower(text)

	start := 0
	for {
		idx, cmd, ok := s.nextCommand(lower, start)
		if !ok {
			break
		}
		res.Commands++
		res.Last = cmd.phrase
		if span := strings.TrimSpace(text[start:idx]); span != "" {
			res.Utterances = append(res.Utterances, span)
		}
		start = idx + len(cmd.phrase)
		res.Consumed = start
		if cmd.terminate {
			res.Terminated = true
			res.Consumed = len(text)
			return res
		}
	}

	res.Remainder = strings.TrimSpace(text[start:])
	return res
}

// nextCommand finds the earliest word-bounded command phrase at or after from.
func (s *Segmenter) nextCommand(lower string, from int) (int, command, bool) {
	bestIdx := -1
	var best command
	for _, c := range s.commands {
		idx := indexWord(lower, c.phrase, from)
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx || (idx == bestIdx && len(c.phrase) > len(best.phrase)) {
			bestIdx = idx
			best = c
		}
	}
	return bestIdx, best, bestIdx >= 0
}

// indexWord returns the first offset >= from where phrase occurs with word
// boundaries on both sides, or -1.
func indexWord(s, phrase string, from int) int {
	for from <= len(s)-len(phrase) {
		i := strings.Index(s[from:], phrase)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(phrase)
		if (i == 0 || !isWordByte(s[i-1])) && (end == len(s) || !isWordByte(s[end])) {
			return i
		}
		from = i + 1
	}
	return -1
}

func isWordByte(b byte) bool {
	return b == '\'' || b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= 0x80
}

// asciiLower lowercases ASCII letters only so byte offsets stay aligned with
// the original text.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
