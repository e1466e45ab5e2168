package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func pcmSamples(n int) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i))
	}
	return pcm
}

func TestEncodeWAV_ReadWAVHeader(t *testing.T) {
	pcm := pcmSamples(800)
	data, err := EncodeWAV(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(data) != wavHeaderSize+len(pcm) {
		t.Fatalf("len = %d, want %d", len(data), wavHeaderSize+len(pcm))
	}

	r := bytes.NewReader(data)
	f, err := ReadWAVHeader(r)
	if err != nil {
		t.Fatalf("ReadWAVHeader: %v", err)
	}
	want := WAVFormat{AudioFormat: 1, NumChannels: 1, SampleRate: 16000, BitsPerSample: 16, DataSize: uint32(len(pcm))}
	if f != want {
		t.Errorf("format = %+v, want %+v", f, want)
	}
	if f.BytesPerSecond() != 32000 {
		t.Errorf("BytesPerSecond = %d, want 32000", f.BytesPerSecond())
	}
	if r.Len() != len(pcm) {
		t.Errorf("reader left %d bytes, want %d", r.Len(), len(pcm))
	}
}

func TestReadWAVHeader_SkipsExtraChunks(t *testing.T) {
	data, _ := EncodeWAV(pcmSamples(10), 8000, 1)

	// Insert a LIST chunk with an odd size between fmt and data.
	var buf bytes.Buffer
	buf.Write(data[:36])
	buf.WriteString("LIST")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{'a', 'b', 'c', 0})
	buf.Write(data[36:])

	f, err := ReadWAVHeader(&buf)
	if err != nil {
		t.Fatalf("ReadWAVHeader: %v", err)
	}
	if f.SampleRate != 8000 || f.DataSize != 20 {
		t.Errorf("format = %+v", f)
	}
}

func TestReadWAVHeader_Invalid(t *testing.T) {
	if _, err := ReadWAVHeader(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Error("expected error for non-WAV input")
	}
	if _, err := EncodeWAV(nil, 0, 1); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func writeWAV(t *testing.T, pcm []byte, rate int) string {
	t.Helper()
	data, err := EncodeWAV(pcm, rate, 1)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dictation.wav")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestWAVRecorder_DeliversWholeFile(t *testing.T) {
	pcm := pcmSamples(4000) // 0.25s at 16kHz
	path := writeWAV(t, pcm, 16000)

	rec := NewWAVRecorder(path, WithRealtime(false), WithLanguage("en-US"))

	var (
		mu  sync.Mutex
		got bytes.Buffer
		n   int
	)
	err := rec.Start(context.Background(), func(chunk []byte) {
		mu.Lock()
		defer mu.Unlock()
		got.Write(chunk)
		n++
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-rec.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for end of file")
	}
	rec.Stop()
	if err := rec.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(got.Bytes(), pcm) {
		t.Errorf("delivered %d bytes, want %d", got.Len(), len(pcm))
	}
	// 100ms chunks of 3200 bytes
	if n != 3 {
		t.Errorf("chunks = %d, want 3", n)
	}

	clip := rec.Clip()
	if clip.SampleRateHz != 16000 || clip.MIMEType != "audio/wav" || clip.LanguageCode != "en-US" {
		t.Errorf("clip = %+v", clip)
	}
	if len(clip.Data) != wavHeaderSize+len(pcm) {
		t.Errorf("clip data = %d bytes", len(clip.Data))
	}

	if err := rec.Start(context.Background(), func([]byte) {}); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestWAVRecorder_StopHaltsDelivery(t *testing.T) {
	path := writeWAV(t, pcmSamples(16000*5), 16000)
	rec := NewWAVRecorder(path, WithChunkDuration(20*time.Millisecond))

	var (
		mu sync.Mutex
		n  int
	)
	rec.Start(context.Background(), func([]byte) {
		mu.Lock()
		n++
		mu.Unlock()
	})
	time.Sleep(50 * time.Millisecond)
	rec.Stop()

	mu.Lock()
	after := n
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if n != after {
		t.Errorf("chunks delivered after Stop: %d -> %d", after, n)
	}
	rec.Release()
}

func TestWAVRecorder_MissingFile(t *testing.T) {
	rec := NewWAVRecorder(filepath.Join(t.TempDir(), "missing.wav"))
	err := rec.Start(context.Background(), func([]byte) {})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Start = %v, want ErrDeviceUnavailable", err)
	}
	if err := rec.Stop(); err != nil {
		t.Errorf("Stop on unstarted recorder: %v", err)
	}
	if err := rec.Release(); err != nil {
		t.Errorf("Release on unstarted recorder: %v", err)
	}
}

func TestMemoryRecorder(t *testing.T) {
	rec := NewMemoryRecorder(16000, "en-US")

	if _, err := rec.Write([]byte{1, 2}); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Write before Start = %v, want ErrNotRecording", err)
	}

	var got [][]byte
	if err := rec.Start(context.Background(), func(c []byte) { got = append(got, c) }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.Write([]byte{1, 2, 3, 4})
	rec.Write([]byte{5, 6})
	rec.Stop()
	rec.Release()

	if _, err := rec.Write([]byte{7, 8}); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Write after Stop = %v, want ErrNotRecording", err)
	}
	if len(got) != 2 {
		t.Errorf("chunks = %d, want 2", len(got))
	}
	if !rec.Released() {
		t.Error("expected recorder released")
	}
	if want := []string{"start", "stop", "release"}; !reflect.DeepEqual(rec.Events(), want) {
		t.Errorf("Events = %v, want %v", rec.Events(), want)
	}
	if clip := rec.Clip(); len(clip.Data) != wavHeaderSize+6 {
		t.Errorf("clip data = %d bytes", len(clip.Data))
	}
}

func TestMemoryRecorder_StartErr(t *testing.T) {
	rec := NewMemoryRecorder(16000, "en-US")
	rec.StartErr = ErrPermissionDenied

	if err := rec.Start(context.Background(), func([]byte) {}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Start = %v, want ErrPermissionDenied", err)
	}
}
