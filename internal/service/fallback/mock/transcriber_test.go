package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/service/fallback"
)

var clip = models.AudioClip{Data: []byte{1, 2, 3, 4}, MIMEType: "audio/wav"}

func TestTranscribe_Text(t *testing.T) {
	m := New("Amlodipine 5mg once daily")
	text, err := m.Transcribe(context.Background(), clip)
	if err != nil || text != "Amlodipine 5mg once daily" {
		t.Fatalf("Transcribe = %q, %v", text, err)
	}
	if m.Calls() != 1 {
		t.Errorf("Calls = %d, want 1", m.Calls())
	}
	if got, ok := m.LastClip(); !ok || len(got.Data) != 4 {
		t.Errorf("LastClip = %+v, %v", got, ok)
	}
}

func TestTranscribe_Error(t *testing.T) {
	m := New("", WithError(errors.New("boom")))
	_, err := m.Transcribe(context.Background(), clip)
	if !errors.Is(err, fallback.ErrTranscription) {
		t.Errorf("err = %v, want ErrTranscription", err)
	}
}

func TestTranscribe_EmptyClip(t *testing.T) {
	m := New("ignored")
	_, err := m.Transcribe(context.Background(), models.AudioClip{})
	if got := fallback.Message(err); got != "No audio was recorded" {
		t.Errorf("Message = %q", got)
	}
}

func TestTranscribe_CancelDuringDelay(t *testing.T) {
	m := New("late", WithDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Transcribe(ctx, clip)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
