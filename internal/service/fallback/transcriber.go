// Package fallback defines batch transcription of a finished recording,
// used when live captions were unavailable or never started.
package fallback

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/observability/metrics"
)

// ErrTranscription is matched by every error a Transcriber returns.
var ErrTranscription = errors.New("transcription failed")

// Transcriber turns a recorded clip into final text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip models.AudioClip) (string, error)
}

// Error carries a message fit to show the operator.
type Error struct {
	Provider string
	Message  string
	Err      error
}

// NewError wraps err with a human-readable message.
func NewError(provider, message string, err error) *Error {
	return &Error{Provider: provider, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Provider + ": " + e.Message
	}
	return e.Provider + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every Error match ErrTranscription.
func (e *Error) Is(target error) bool {
	return target == ErrTranscription
}

// Message returns the operator-facing message for err.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	if errors.Is(err, context.Canceled) {
		return "Transcription cancelled"
	}
	return "Transcription failed, please try again"
}

// FuncTranscriber adapts a function to Transcriber.
type FuncTranscriber func(ctx context.Context, clip models.AudioClip) (string, error)

func (f FuncTranscriber) Transcribe(ctx context.Context, clip models.AudioClip) (string, error) {
	return f(ctx, clip)
}

type instrumented struct {
	provider string
	next     Transcriber
	m        *metrics.Metrics
}

// Instrument records latency and errors for every call to t.
func Instrument(provider string, t Transcriber, m *metrics.Metrics) Transcriber {
	return &instrumented{provider: provider, next: t, m: m}
}

func (i *instrumented) Transcribe(ctx context.Context, clip models.AudioClip) (string, error) {
	start := time.Now()
	text, err := i.next.Transcribe(ctx, clip)
	elapsed := time.Since(start)

	i.m.RecordFallback(i.provider, err, elapsed.Seconds())

	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("provider", i.provider).
		Int("bytes", len(clip.Data)).
		Dur("duration", elapsed).
		Msg("Fallback transcription")

	return text, err
}
