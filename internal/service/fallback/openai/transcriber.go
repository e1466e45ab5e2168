// Package openai transcribes recorded clips with the OpenAI audio API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/service/fallback"
)

// ProviderName labels metrics and logs.
const ProviderName = "openai"

// DefaultModel is the default transcription model.
const DefaultModel = oai.AudioModelWhisper1

// Biases recognition toward clinical vocabulary and dictation commands.
const defaultPrompt = "Clinical dictation. Medications with dosages, e.g. Amlodipine 5 mg once daily for 30 days. next medication. that's all."

// Transcriber implements fallback.Transcriber.
type Transcriber struct {
	client oai.Client
	model  string
	prompt string
}

type config struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	prompt     string
}

// Option is a functional option for Transcriber.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the client retries failed requests.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithPrompt replaces the vocabulary prompt.
func WithPrompt(p string) Option {
	return func(c *config) {
		c.prompt = p
	}
}

// New constructs a Transcriber. An empty model uses DefaultModel.
func New(apiKey, model string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("openai transcriber: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{maxRetries: 2, prompt: defaultPrompt}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.maxRetries),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Transcriber{
		client: oai.NewClient(reqOpts...),
		model:  model,
		prompt: cfg.prompt,
	}, nil
}

// Transcribe implements fallback.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, clip models.AudioClip) (string, error) {
	if clip.Empty() {
		return "", fallback.NewError(ProviderName, "No audio was recorded", nil)
	}

	mime := clip.MIMEType
	if mime == "" {
		mime = "audio/wav"
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(clip.Data), "dictation"+extension(mime), mime),
		Model: t.model,
	}
	if lang := language(clip.LanguageCode); lang != "" {
		params.Language = oai.String(lang)
	}
	if t.prompt != "" {
		params.Prompt = oai.String(t.prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fallback.NewError(ProviderName, message(err), err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func message(err error) string {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return "Transcription service rejected the credentials"
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return "Transcription service is busy, please try again"
		case apiErr.StatusCode == http.StatusRequestEntityTooLarge:
			return "Recording is too long to transcribe"
		case apiErr.StatusCode >= 500:
			return "Transcription service unavailable"
		default:
			return fmt.Sprintf("Transcription request rejected (HTTP %d)", apiErr.StatusCode)
		}
	}
	if errors.Is(err, context.Canceled) {
		return "Transcription cancelled"
	}
	return "Transcription service unreachable"
}

// language reduces a BCP-47 tag to the ISO-639-1 code the API expects.
func language(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}

func extension(mime string) string {
	base := strings.ToLower(strings.SplitN(mime, ";", 2)[0])
	switch base {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ".wav"
	}
}
