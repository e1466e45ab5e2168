// Package mock provides a scripted STT adapter for running dictation
// without cloud credentials. Each audio frame advances the script: one
// partial per frame, then the utterance's final.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"clinical-dictation-service/internal/service/stt"
)

// ProviderName labels metrics and logs.
const ProviderName = "mock"

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string // Progressive partial transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances is a two-item prescription dictation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"Amlodipine", "Amlodipine 5 mg", "Amlodipine 5 mg once daily"},
		Final:      "Amlodipine 5 mg once daily for 30 days",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"next"},
		Final:      "next medication",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"Metformin", "Metformin 500 mg", "Metformin 500 mg twice daily"},
		Final:      "Metformin 500 mg twice daily for 60 days",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"that's"},
		Final:      "that's all",
		Confidence: 0.98,
	},
}

// Option configures the mock.
type Option func(*Adapter)

// WithScript replaces the default utterances.
func WithScript(script []SimulatedUtterance) Option {
	return func(a *Adapter) {
		a.script = script
	}
}

// WithDelay delivers callbacks asynchronously after d, like a remote service.
func WithDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.delay = d
	}
}

// WithFailure reports one error with code after the given number of frames
// in the first stream.
func WithFailure(afterFrames int, code stt.Code) Option {
	return func(a *Adapter) {
		a.failAfter = afterFrames
		a.failCode = code
	}
}

// Adapter implements stt.Adapter with scripted responses.
type Adapter struct {
	mu            sync.Mutex
	cb            stt.Callback
	script        []SimulatedUtterance
	delay         time.Duration
	utterance     int // Index into script
	partialIndex  int // Next partial to send
	audioReceived int // Frames received in the current stream
	starts        int
	closed        bool

	failAfter int
	failCode  stt.Code
	failed    bool
}

// New creates a mock adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{script: DefaultUtterances}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Start begins a mock stream. Restarting continues the script where it left off.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	a.closed = false
	a.audioReceived = 0
	a.starts++
	return nil
}

// Starts returns how many times Start was called.
func (a *Adapter) Starts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts
}

// SendAudio advances the script by one step.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return nil
	}
	a.audioReceived++
	cb := a.cb

	if !a.failed && a.failAfter > 0 && a.audioReceived >= a.failAfter {
		a.failed = true
		a.cb = nil
		code := a.failCode
		a.mu.Unlock()
		a.deliver(func() { cb.OnError(stt.NewError(code, errors.New("simulated stream failure"))) })
		return nil
	}

	if a.utterance >= len(a.script) {
		a.mu.Unlock()
		return nil
	}
	utt := a.script[a.utterance]

	var emit func()
	if a.partialIndex < len(utt.Partials) {
		text := utt.Partials[a.partialIndex]
		a.partialIndex++
		emit = func() { cb.OnPartial(text) }
	} else {
		a.utterance++
		a.partialIndex = 0
		emit = func() { cb.OnFinal(utt.Final, utt.Confidence) }
	}
	a.mu.Unlock()

	a.deliver(emit)
	return nil
}

// Close ends the stream. An utterance in progress is finalized first, as a
// real provider flushes on half-close.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true

	cb := a.cb
	var pending *SimulatedUtterance
	if cb != nil && a.partialIndex > 0 && a.utterance < len(a.script) {
		utt := a.script[a.utterance]
		pending = &utt
		a.utterance++
		a.partialIndex = 0
	}
	a.mu.Unlock()

	if pending != nil {
		cb.OnFinal(pending.Final, pending.Confidence)
	}
	return nil
}

func (a *Adapter) deliver(fn func()) {
	if a.delay <= 0 {
		fn()
		return
	}
	time.AfterFunc(a.delay, fn)
}
