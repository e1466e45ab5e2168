package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"clinical-dictation-service/internal/models"
)

// ErrNotRecording is returned by Write when the recorder is not capturing.
var ErrNotRecording = errors.New("recorder is not capturing")

// MemoryRecorder is fed audio by its owner through Write, for example PCM
// frames forwarded from a browser. It is also the recorder used in tests.
type MemoryRecorder struct {
	SampleRateHz int
	LanguageCode string
	// StartErr, when set, is returned by Start to simulate a refused device.
	StartErr error

	deliver sync.Mutex // serializes onChunk calls

	mu        sync.Mutex
	onChunk   func([]byte)
	pcm       bytes.Buffer
	recording bool
	released  bool
	events    []string
}

// NewMemoryRecorder creates a recorder for 16-bit mono PCM at sampleRate.
func NewMemoryRecorder(sampleRate int, language string) *MemoryRecorder {
	return &MemoryRecorder{SampleRateHz: sampleRate, LanguageCode: language}
}

func (r *MemoryRecorder) Start(ctx context.Context, onChunk func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, "start")
	if r.StartErr != nil {
		return r.StartErr
	}
	if r.recording {
		return ErrAlreadyStarted
	}
	r.onChunk = onChunk
	r.recording = true
	r.released = false
	return nil
}

// Write captures p and forwards it to the session.
func (r *MemoryRecorder) Write(p []byte) (int, error) {
	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return 0, ErrNotRecording
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	r.pcm.Write(chunk)
	onChunk := r.onChunk
	r.mu.Unlock()

	onChunk(chunk)
	return len(p), nil
}

func (r *MemoryRecorder) Stop() error {
	// Wait out an in-flight delivery.
	r.deliver.Lock()
	defer r.deliver.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "stop")
	r.recording = false
	return nil
}

func (r *MemoryRecorder) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "release")
	r.released = true
	return nil
}

// Released reports whether the device has been released.
func (r *MemoryRecorder) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// Events returns the lifecycle calls received, in order.
func (r *MemoryRecorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *MemoryRecorder) Clip() models.AudioClip {
	r.mu.Lock()
	defer r.mu.Unlock()

	clip := models.AudioClip{MIMEType: "audio/wav", SampleRateHz: r.SampleRateHz, LanguageCode: r.LanguageCode}
	if r.pcm.Len() == 0 {
		return clip
	}
	data, err := EncodeWAV(r.pcm.Bytes(), r.SampleRateHz, 1)
	if err != nil {
		return clip
	}
	clip.Data = data
	return clip
}
