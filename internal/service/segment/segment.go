// Package segment splits dictated speech into command-bounded utterances.
package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator issues utterance IDs that are unique across sessions.
type Generator struct {
	counter uint64
}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) Next(sessionID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-utt-%d", sessionID, n)
}
