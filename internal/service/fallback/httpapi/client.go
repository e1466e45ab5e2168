// Package httpapi posts recordings to a generic multipart transcription
// endpoint, such as a self-hosted Whisper server.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/service/fallback"
)

// ProviderName labels metrics and logs.
const ProviderName = "http"

// Config contains transcription client configuration.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// RetryBase is the first backoff delay; it doubles per attempt.
	RetryBase time.Duration
}

// Client implements fallback.Transcriber over HTTP.
type Client struct {
	config     Config
	httpClient *http.Client
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.code, e.body)
}

// NewClient creates a new transcription HTTP client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBase <= 0 {
		config.RetryBase = time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Transcribe sends the clip, retrying transient failures with exponential backoff.
func (c *Client) Transcribe(ctx context.Context, clip models.AudioClip) (string, error) {
	if clip.Empty() {
		return "", fallback.NewError(ProviderName, "No audio was recorded", nil)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.config.RetryBase
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			log.Debug().Int("attempt", attempt).Dur("backoff", backoff).Err(lastErr).Msg("Retrying transcription request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fallback.NewError(ProviderName, "Transcription cancelled", ctx.Err())
			}
		}

		text, err := c.doRequest(ctx, clip)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}

	return "", fallback.NewError(ProviderName, message(lastErr), lastErr)
}

func (c *Client) doRequest(ctx context.Context, clip models.AudioClip) (string, error) {
	body, contentType, err := c.createMultipartRequest(clip)
	if err != nil {
		return "", fmt.Errorf("create multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		return strings.TrimSpace(string(respBody)), nil
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("parse response JSON: %w", err)
	}
	return strings.TrimSpace(tr.Text), nil
}

func (c *Client) createMultipartRequest(clip models.AudioClip) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "dictation.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fileWriter.Write(clip.Data); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := map[string]string{
		"response_format": "json",
		"mime_type":       clip.MIMEType,
	}
	if clip.LanguageCode != "" {
		fields["language"] = clip.LanguageCode
	}
	if clip.SampleRateHz > 0 {
		fields["sample_rate"] = fmt.Sprintf("%d", clip.SampleRateHz)
	}
	if c.config.Model != "" {
		fields["model"] = c.config.Model
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// isRetryable reports whether a failed request may succeed on retry:
// timeouts, connection failures, 429 and 5xx responses.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}

	var ne net.Error
	return errors.As(err, &ne)
}

func message(err error) string {
	var se *statusError
	switch {
	case errors.As(err, &se) && (se.code == http.StatusUnauthorized || se.code == http.StatusForbidden):
		return "Transcription service rejected the credentials"
	case errors.As(err, &se) && se.code == http.StatusTooManyRequests:
		return "Transcription service is busy, please try again"
	case errors.As(err, &se) && se.code >= 500:
		return "Transcription service unavailable"
	case errors.As(err, &se):
		return fmt.Sprintf("Transcription request rejected (HTTP %d)", se.code)
	case errors.Is(err, context.Canceled):
		return "Transcription cancelled"
	default:
		return "Transcription service unreachable"
	}
}
