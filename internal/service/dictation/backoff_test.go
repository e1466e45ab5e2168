package dictation

import (
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := DefaultBackoff()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 500 * time.Millisecond},
		{0, 500 * time.Millisecond},
		{1, 750 * time.Millisecond},
		{2, 1125 * time.Millisecond},
		{3, 1687500 * time.Microsecond},
		{6, 5695312500 * time.Nanosecond},
		{7, 8 * time.Second},
		{50, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_Exhausted(t *testing.T) {
	b := DefaultBackoff()

	for attempt := 0; attempt < 5; attempt++ {
		if b.Exhausted(attempt) {
			t.Errorf("attempt %d should not be exhausted", attempt)
		}
	}
	if !b.Exhausted(5) {
		t.Error("attempt 5 should be exhausted with MaxAttempts=5")
	}
}
