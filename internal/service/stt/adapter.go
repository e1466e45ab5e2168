// Package stt defines the interface for streaming Speech-to-Text adapters.
package stt

import "context"

// Callback receives transcript results from the STT provider.
type Callback interface {
	// OnPartial is called when an interim transcript is received.
	// Each call supersedes the previous interim text.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnError is called when the stream fails. Errors should be *Error or
	// classifiable by Classify.
	OnError(err error)
}

// Adapter defines the interface for live transcription sources.
//
// Start may be called again after a failure to reconnect; each call opens a
// fresh stream and replaces the previous callback.
type Adapter interface {
	// Start begins a streaming transcription session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the STT provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}
