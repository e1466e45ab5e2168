// Package mock provides a scripted fallback transcriber for tests and demos.
package mock

import (
	"context"
	"sync"
	"time"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/service/fallback"
)

// ProviderName labels metrics and logs.
const ProviderName = "mock"

// Transcriber returns a fixed text or error after an optional delay.
type Transcriber struct {
	text  string
	err   error
	delay time.Duration

	mu    sync.Mutex
	clips []models.AudioClip
}

// Option configures the mock.
type Option func(*Transcriber)

// WithError makes every call fail with err.
func WithError(err error) Option {
	return func(t *Transcriber) { t.err = err }
}

// WithDelay holds each call for d, or until the context is cancelled.
func WithDelay(d time.Duration) Option {
	return func(t *Transcriber) { t.delay = d }
}

// New returns a transcriber that answers with text.
func New(text string, opts ...Option) *Transcriber {
	t := &Transcriber{text: text}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe implements fallback.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, clip models.AudioClip) (string, error) {
	t.mu.Lock()
	t.clips = append(t.clips, clip)
	t.mu.Unlock()

	if t.delay > 0 {
		timer := time.NewTimer(t.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", fallback.NewError(ProviderName, "Transcription cancelled", ctx.Err())
		}
	}

	if clip.Empty() {
		return "", fallback.NewError(ProviderName, "No audio was recorded", nil)
	}
	if t.err != nil {
		return "", fallback.NewError(ProviderName, fallback.Message(t.err), t.err)
	}
	return t.text, nil
}

// Calls returns the number of Transcribe calls so far.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clips)
}

// LastClip returns the most recent clip received.
func (t *Transcriber) LastClip() (models.AudioClip, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.clips) == 0 {
		return models.AudioClip{}, false
	}
	return t.clips[len(t.clips)-1], true
}
