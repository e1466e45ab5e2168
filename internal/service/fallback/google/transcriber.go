// Package google transcribes recorded clips with Cloud Speech-to-Text.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/service/fallback"
	sttgoogle "clinical-dictation-service/internal/service/stt/google"
)

// ProviderName labels metrics and logs.
const ProviderName = "google"

// Synchronous recognition only accepts about a minute of audio.
const syncLimit = 55 * time.Second

// Transcriber implements fallback.Transcriber with Recognize, switching to
// LongRunningRecognize for long recordings.
type Transcriber struct {
	client *speech.Client
	cfg    sttgoogle.Config
}

// New creates a transcriber. cfg supplies defaults the clip does not carry.
func New(ctx context.Context, cfg sttgoogle.Config, opts ...option.ClientOption) (*Transcriber, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Transcriber{client: c, cfg: cfg}, nil
}

// Close closes the client connection.
func (t *Transcriber) Close() error {
	return t.client.Close()
}

// Transcribe implements fallback.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, clip models.AudioClip) (string, error) {
	if clip.Empty() {
		return "", fallback.NewError(ProviderName, "No audio was recorded", nil)
	}

	req := &speechpb.RecognizeRequest{
		Config: sttgoogle.RecognitionConfig(clipConfig(t.cfg, clip)),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: clip.Data},
		},
	}

	var results []*speechpb.SpeechRecognitionResult
	if clip.PCMDuration() > syncLimit {
		op, err := t.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
			Config: req.Config,
			Audio:  req.Audio,
		})
		if err != nil {
			return "", fallback.NewError(ProviderName, "Transcription service unavailable", err)
		}
		resp, err := op.Wait(ctx)
		if err != nil {
			return "", fallback.NewError(ProviderName, "Transcription did not complete", err)
		}
		results = resp.Results
	} else {
		resp, err := t.client.Recognize(ctx, req)
		if err != nil {
			return "", fallback.NewError(ProviderName, "Transcription service unavailable", err)
		}
		results = resp.Results
	}

	return joinResults(results), nil
}

// clipConfig overlays what the clip knows about itself onto the defaults.
func clipConfig(cfg sttgoogle.Config, clip models.AudioClip) sttgoogle.Config {
	if clip.LanguageCode != "" {
		cfg.LanguageCode = clip.LanguageCode
	}
	cfg.SampleRateHz = clip.SampleRateHz
	if enc := encodingForMIME(clip.MIMEType); enc != "" {
		cfg.AudioEncoding = enc
	}
	switch cfg.AudioEncoding {
	case "WEBM_OPUS", "OGG_OPUS", "FLAC":
		// The container header carries the rate.
		cfg.SampleRateHz = 0
	}
	return cfg
}

func encodingForMIME(mime string) string {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/l16":
		return "LINEAR16"
	case "audio/flac", "audio/x-flac":
		return "FLAC"
	case "audio/ogg":
		return "OGG_OPUS"
	case "audio/webm":
		return "WEBM_OPUS"
	case "audio/basic", "audio/mulaw":
		return "MULAW"
	default:
		return ""
	}
}

func joinResults(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(r.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
