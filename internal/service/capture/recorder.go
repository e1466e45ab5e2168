// Package capture provides audio capture handles for dictation sessions.
//
// A Recorder owns an audio device (or a stand-in such as a file). Stop ends
// capture and Release frees the device; sessions always call both, in that
// order, before processing the recording.
package capture

import (
	"context"
	"errors"

	"clinical-dictation-service/internal/models"
)

var (
	// ErrPermissionDenied means the operator refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable means no usable audio device was found.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrAlreadyStarted is returned by Start on a running recorder.
	ErrAlreadyStarted = errors.New("recorder already started")
)

// Recorder is an audio capture handle.
type Recorder interface {
	// Start acquires the device and begins delivering PCM chunks to onChunk
	// from a single goroutine. Permission and device failures are returned
	// as ErrPermissionDenied or ErrDeviceUnavailable.
	Start(ctx context.Context, onChunk func([]byte)) error

	// Stop ends capture. No chunks are delivered after Stop returns.
	Stop() error

	// Release frees the underlying device. Safe to call more than once.
	Release() error

	// Clip returns everything captured so far as a complete recording.
	Clip() models.AudioClip
}
