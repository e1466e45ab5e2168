package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"clinical-dictation-service/internal/models"
)

const defaultChunkDuration = 100 * time.Millisecond

// WAVOption configures a WAVRecorder.
type WAVOption func(*WAVRecorder)

// WithRealtime paces chunks at the audio's natural rate.
func WithRealtime(realtime bool) WAVOption {
	return func(r *WAVRecorder) {
		r.realtime = realtime
	}
}

// WithChunkDuration sets how much audio each chunk carries.
func WithChunkDuration(d time.Duration) WAVOption {
	return func(r *WAVRecorder) {
		if d > 0 {
			r.chunkDuration = d
		}
	}
}

// WithLanguage sets the language hint attached to the clip.
func WithLanguage(code string) WAVOption {
	return func(r *WAVRecorder) {
		r.language = code
	}
}

// WAVRecorder plays a PCM WAV file as if it were a microphone. The file is
// the device: opening it is acquiring the device and closing it is release.
type WAVRecorder struct {
	path          string
	chunkDuration time.Duration
	realtime      bool
	language      string

	mu      sync.Mutex
	file    *os.File
	format  WAVFormat
	pcm     bytes.Buffer
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	ended   chan struct{}
}

// NewWAVRecorder creates a recorder for the file at path.
func NewWAVRecorder(path string, opts ...WAVOption) *WAVRecorder {
	r := &WAVRecorder{
		path:          path,
		chunkDuration: defaultChunkDuration,
		realtime:      true,
		ended:         make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start opens the file and begins streaming chunks.
func (r *WAVRecorder) Start(ctx context.Context, onChunk func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}

	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	format, err := ReadWAVHeader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if format.BitsPerSample != 16 {
		f.Close()
		return fmt.Errorf("%w: only 16-bit PCM supported, got %d", ErrDeviceUnavailable, format.BitsPerSample)
	}

	log.Debug().
		Str("path", r.path).
		Uint32("sampleRate", format.SampleRate).
		Uint16("channels", format.NumChannels).
		Msg("WAV capture started")

	chunkSize := format.BytesPerSecond() * int(r.chunkDuration) / int(time.Second)
	if align := int(format.NumChannels) * 2; align > 0 {
		chunkSize -= chunkSize % align
	}
	if chunkSize <= 0 {
		chunkSize = 2
	}

	var src io.Reader = f
	if format.DataSize > 0 && format.DataSize != 0xFFFFFFFF {
		src = io.LimitReader(f, int64(format.DataSize))
	}

	pctx, cancel := context.WithCancel(ctx)
	r.file = f
	r.format = format
	r.started = true
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.pump(pctx, src, chunkSize, onChunk)
	return nil
}

func (r *WAVRecorder) pump(ctx context.Context, src io.Reader, chunkSize int, onChunk func([]byte)) {
	defer close(r.done)

	var ticker *time.Ticker
	if r.realtime {
		ticker = time.NewTicker(r.chunkDuration)
		defer ticker.Stop()
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			r.mu.Lock()
			r.pcm.Write(chunk)
			r.mu.Unlock()

			onChunk(chunk)
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.Warn().Err(err).Str("path", r.path).Msg("WAV capture read failed")
			}
			close(r.ended)
			return
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}

// Ended is closed when the whole file has been delivered.
func (r *WAVRecorder) Ended() <-chan struct{} {
	return r.ended
}

// Stop ends capture and waits for the last chunk to be delivered.
func (r *WAVRecorder) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Release closes the file.
func (r *WAVRecorder) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Clip returns the captured audio as a WAV recording.
func (r *WAVRecorder) Clip() models.AudioClip {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pcm.Len() == 0 {
		return models.AudioClip{MIMEType: "audio/wav", LanguageCode: r.language}
	}
	data, err := EncodeWAV(r.pcm.Bytes(), int(r.format.SampleRate), int(r.format.NumChannels))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode captured audio")
		return models.AudioClip{MIMEType: "audio/wav", LanguageCode: r.language}
	}
	return models.AudioClip{
		Data:         data,
		MIMEType:     "audio/wav",
		SampleRateHz: int(r.format.SampleRate),
		LanguageCode: r.language,
	}
}
