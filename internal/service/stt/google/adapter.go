// Package google provides a Google Cloud Speech-to-Text streaming adapter.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"clinical-dictation-service/internal/observability/logging"
	"clinical-dictation-service/internal/service/stt"
)

// ProviderName labels metrics and logs.
const ProviderName = "google"

var errNoSpeech = errors.New("no speech detected before timeout")

// flushTimeout bounds how long Close waits for results still in flight.
const flushTimeout = 2 * time.Second

// Config holds streaming recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	// Model selects a recognition model such as "medical_dictation". Empty uses the default.
	Model string
	// Punctuation enables automatic punctuation, which the classifier relies on
	// for sentence boundaries.
	Punctuation bool
	// SpeechStartTimeout reports no-speech when nothing is heard in time. Zero disables it.
	SpeechStartTimeout time.Duration
}

// DefaultConfig returns defaults for 16 kHz LINEAR16 dictation audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:       "en-US",
		SampleRateHz:       16000,
		InterimResults:     true,
		AudioEncoding:      "LINEAR16",
		Punctuation:        true,
		SpeechStartTimeout: 10 * time.Second,
	}
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config
	log    zerolog.Logger

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Google STT adapter. Credentials come from
// GOOGLE_APPLICATION_CREDENTIALS unless overridden by opts.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Adapter, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Adapter{client: c, cfg: cfg, log: logging.WithComponent("stt-" + ProviderName)}, nil
}

// Start opens a streaming recognition session, sends the config and starts
// listening for responses. A previous stream, if any, is cancelled.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}

	sctx, cancel := context.WithCancel(ctx)
	stream, err := a.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return stt.NewError(stt.Classify(err), err)
	}

	// Send streaming config as the first message
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(a.cfg),
		},
	})
	if err != nil {
		cancel()
		return stt.NewError(stt.Classify(err), err)
	}

	done := make(chan struct{})
	a.stream = stream
	a.cancel = cancel
	a.done = done
	go a.listen(stream, cancel, done, cb)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()

	if stream == nil {
		return stt.NewError(stt.CodeAborted, errors.New("stream not started"))
	}
	err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
	if err != nil {
		// Send reports io.EOF when the stream broke; the cause arrives via Recv.
		return stt.NewError(stt.CodeNetwork, err)
	}
	return nil
}

// Close half-closes the stream and waits briefly for results still in
// flight, so finals reach the callback before Close returns.
func (a *Adapter) Close() error {
	a.mu.Lock()
	stream, done := a.stream, a.done
	a.stream = nil
	a.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	select {
	case <-done:
	case <-time.After(flushTimeout):
		a.log.Warn().Msg("Timed out waiting for final results")
	}
	return nil
}

// Shutdown closes the underlying client connection.
func (a *Adapter) Shutdown() error {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
	return a.client.Close()
}

// listen receives transcript responses and invokes callbacks until the
// stream ends.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cancel context.CancelFunc, done chan struct{}, cb stt.Callback) {
	defer close(done)
	defer cancel()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			cb.OnError(stt.NewError(stt.Classify(err), err))
			return
		}

		if resp.Error != nil && resp.Error.Code != 0 {
			perr := status.ErrorProto(resp.Error)
			cb.OnError(stt.NewError(stt.Classify(perr), perr))
			return
		}

		if resp.SpeechEventType == speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_TIMEOUT {
			a.log.Debug().Msg("Speech activity timeout")
			cb.OnError(stt.NewError(stt.CodeNoSpeech, errNoSpeech))
			continue
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			} else {
				cb.OnPartial(alt.Transcript)
			}
		}
	}
}

func streamingConfig(cfg Config) *speechpb.StreamingRecognitionConfig {
	sc := &speechpb.StreamingRecognitionConfig{
		Config:         RecognitionConfig(cfg),
		InterimResults: cfg.InterimResults,
	}
	if cfg.SpeechStartTimeout > 0 {
		sc.EnableVoiceActivityEvents = true
		sc.VoiceActivityTimeout = &speechpb.StreamingRecognitionConfig_VoiceActivityTimeout{
			SpeechStartTimeout: durationpb.New(cfg.SpeechStartTimeout),
		}
	}
	return sc
}

// RecognitionConfig builds the recognition settings shared with batch recognition.
func RecognitionConfig(cfg Config) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Encoding:                   ParseAudioEncoding(cfg.AudioEncoding),
		SampleRateHertz:            int32(cfg.SampleRateHz),
		LanguageCode:               cfg.LanguageCode,
		Model:                      cfg.Model,
		EnableAutomaticPunctuation: cfg.Punctuation,
	}
}

// ParseAudioEncoding maps an encoding name to the protobuf enum. Names are
// upper case; anything unknown falls back to LINEAR16.
func ParseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	switch name {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
