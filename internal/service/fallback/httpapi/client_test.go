package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/service/fallback"
)

var clip = models.AudioClip{
	Data:         []byte("RIFF0000WAVEdata"),
	MIMEType:     "audio/wav",
	SampleRateHz: 16000,
	LanguageCode: "en-US",
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestTranscribe_JSON(t *testing.T) {
	var gotAuth, gotLang, gotRate string
	var gotSize int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLang = r.FormValue("language")
		gotRate = r.FormValue("sample_rate")
		if _, hdr, err := r.FormFile("file"); err == nil {
			gotSize = hdr.Size
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"Patient reports severe chest pain."}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	text, err := c.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Patient reports severe chest pain." {
		t.Errorf("text = %q", text)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotLang != "en-US" || gotRate != "16000" {
		t.Errorf("language = %q, sample_rate = %q", gotLang, gotRate)
	}
	if gotSize != int64(len(clip.Data)) {
		t.Errorf("file size = %d, want %d", gotSize, len(clip.Data))
	}
}

func TestTranscribe_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Ibuprofen\n"))
	}))
	defer srv.Close()

	c, _ := NewClient(Config{Endpoint: srv.URL})
	text, err := c.Transcribe(context.Background(), clip)
	if err != nil || text != "Ibuprofen" {
		t.Errorf("Transcribe = %q, %v", text, err)
	}
}

func TestTranscribe_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Config{Endpoint: srv.URL, MaxRetries: 3, RetryBase: time.Millisecond})
	text, err := c.Transcribe(context.Background(), clip)
	if err != nil || text != "ok" {
		t.Fatalf("Transcribe = %q, %v", text, err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestTranscribe_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := NewClient(Config{Endpoint: srv.URL, MaxRetries: 3, RetryBase: time.Millisecond})
	_, err := c.Transcribe(context.Background(), clip)
	if !errors.Is(err, fallback.ErrTranscription) {
		t.Fatalf("err = %v, want ErrTranscription", err)
	}
	if got := fallback.Message(err); got != "Transcription service rejected the credentials" {
		t.Errorf("Message = %q", got)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestTranscribe_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(Config{Endpoint: srv.URL, MaxRetries: 5, RetryBase: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := c.Transcribe(ctx, clip)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&statusError{code: 500}, true},
		{&statusError{code: 429}, true},
		{&statusError{code: 400}, false},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{errors.New("parse response JSON"), false},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.err); got != tt.want {
			t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
