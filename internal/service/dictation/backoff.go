package dictation

import (
	"math"
	"time"
)

// Backoff is the reconnect schedule for a failed live stream.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff returns 500ms growing by 1.5x per attempt, capped at 8s, five attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        500 * time.Millisecond,
		Max:         8 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay returns min(Base × 1.5^attempt, Max) for a zero-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(float64(b.Base) * math.Pow(1.5, float64(attempt)))
	if b.Max > 0 && (d > b.Max || d < 0) {
		return b.Max
	}
	return d
}

// Exhausted reports whether attempt is past the last allowed attempt.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt >= b.MaxAttempts
}
