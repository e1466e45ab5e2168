// Package transcript folds streaming transcription segments into a running transcript.
package transcript

import (
	"strings"
	"sync"

	"clinical-dictation-service/internal/models"
)

// Aggregator maintains the RunningTranscript for one dictation.
// Thread-safe, but callers are expected to feed segments from a single
// goroutine so that finals are appended in arrival order.
//
// Finalized text is append-only. It shrinks only through Reset or Consume.
type Aggregator struct {
	mu        sync.RWMutex
	finalized string
	pending   string
	finals    int
	partials  int
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// OnSegment applies one segment. A final segment is appended to the
// finalized text and clears the pending guess; an interim segment replaces
// the pending guess entirely.
func (a *Aggregator) OnSegment(seg models.TranscriptSegment) {
	text := strings.TrimSpace(seg.Text)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !seg.IsFinal {
		a.partials++
		a.pending = text
		return
	}

	a.pending = ""
	if text == "" {
		return
	}
	a.finals++
	if a.finalized == "" {
		a.finalized = text
	} else {
		a.finalized += " " + text
	}
}

// CurrentText returns finalized plus pending text, for live display only.
func (a *Aggregator) CurrentText() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	switch {
	case a.pending == "":
		return a.finalized
	case a.finalized == "":
		return a.pending
	default:
		return a.finalized + " " + a.pending
	}
}

// FinalText returns the finalized text with the pending guess stripped.
// Entity extraction must only ever run on this.
func (a *Aggregator) FinalText() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.finalized
}

// Snapshot returns a copy of the running transcript.
func (a *Aggregator) Snapshot() models.RunningTranscript {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return models.RunningTranscript{Finalized: a.finalized, Pending: a.pending}
}

// Consume drops the first n bytes of finalized text after they have been
// handed to the segmenter. Values beyond the buffer clear it.
func (a *Aggregator) Consume(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if n >= len(a.finalized) {
		a.finalized = ""
		return
	}
	a.finalized = strings.TrimLeft(a.finalized[n:], " \t\r\n")
}

// Reset clears both finalized and pending text.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = ""
	a.pending = ""
	a.finals = 0
	a.partials = 0
}

// Counts returns the number of non-empty finals and partials applied since the last reset.
func (a *Aggregator) Counts() (finals, partials int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.finals, a.partials
}
