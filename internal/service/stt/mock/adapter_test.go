package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"clinical-dictation-service/internal/service/stt"
)

// testCallback implements stt.Callback for testing
type testCallback struct {
	mu       sync.Mutex
	partials []string
	finals   []finalResult
	errors   []error
}

type finalResult struct {
	text       string
	confidence float64
}

func (c *testCallback) OnPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, text)
}

func (c *testCallback) OnFinal(text string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, finalResult{text, confidence})
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) getPartials() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.partials...)
}

func (c *testCallback) getFinals() []finalResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]finalResult{}, c.finals...)
}

func (c *testCallback) getErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error{}, c.errors...)
}

func sendFrames(t *testing.T, a *Adapter, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := a.SendAudio(context.Background(), []byte("audio")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestAdapter_Start(t *testing.T) {
	adapter := New()
	cb := &testCallback{}

	if err := adapter.Start(context.Background(), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter.cb != cb {
		t.Error("expected callback to be set")
	}
	if adapter.Starts() != 1 {
		t.Errorf("expected 1 start, got %d", adapter.Starts())
	}
}

func TestAdapter_SendAudio_PartialsThenFinal(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	sendFrames(t, adapter, 4)

	partials := cb.getPartials()
	if len(partials) != 3 {
		t.Fatalf("expected 3 partials, got %d", len(partials))
	}
	if partials[2] != "Amlodipine 5 mg once daily" {
		t.Errorf("unexpected last partial %q", partials[2])
	}

	finals := cb.getFinals()
	if len(finals) != 1 || finals[0].text != "Amlodipine 5 mg once daily for 30 days" {
		t.Errorf("unexpected finals %+v", finals)
	}
}

func TestAdapter_RunsWholeScript(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	sendFrames(t, adapter, 50)

	finals := cb.getFinals()
	if len(finals) != len(DefaultUtterances) {
		t.Fatalf("expected %d finals, got %d", len(DefaultUtterances), len(finals))
	}
	if finals[3].text != "that's all" {
		t.Errorf("expected script to end with terminate phrase, got %q", finals[3].text)
	}
}

func TestAdapter_WithDelay(t *testing.T) {
	adapter := New(WithDelay(20 * time.Millisecond))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	sendFrames(t, adapter, 1)
	if len(cb.getPartials()) != 0 {
		t.Error("expected partial to be delivered asynchronously")
	}

	time.Sleep(100 * time.Millisecond)
	if len(cb.getPartials()) != 1 {
		t.Errorf("expected 1 partial after delay, got %d", len(cb.getPartials()))
	}
}

func TestAdapter_WithFailure(t *testing.T) {
	adapter := New(WithFailure(2, stt.CodeNetwork))
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	sendFrames(t, adapter, 3)

	errs := cb.getErrors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if stt.Classify(errs[0]) != stt.CodeNetwork {
		t.Errorf("expected network error, got %v", errs[0])
	}

	// The failed stream is dead until restarted.
	if got := len(cb.getPartials()); got != 1 {
		t.Errorf("expected 1 partial before failure, got %d", got)
	}

	adapter.Start(context.Background(), cb)
	sendFrames(t, adapter, 1)
	if got := len(cb.getPartials()); got != 2 {
		t.Errorf("expected script to resume after restart, got %d partials", got)
	}
	if len(cb.getErrors()) != 1 {
		t.Error("expected failure to fire only once")
	}
}

func TestAdapter_Close_Idempotent(t *testing.T) {
	adapter := New()
	adapter.Start(context.Background(), &testCallback{})

	adapter.Close()
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
	if !adapter.closed {
		t.Error("expected adapter to be closed")
	}
}

func TestAdapter_SendAudio_AfterClose(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)
	adapter.Close()

	if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cb.getPartials()) != 0 {
		t.Error("expected no callbacks after close")
	}
}

func TestAdapter_Close_FlushesUtteranceInProgress(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	sendFrames(t, adapter, 2)
	adapter.Close()

	finals := cb.getFinals()
	if len(finals) != 1 {
		t.Fatalf("expected 1 final on close, got %d", len(finals))
	}
}

func TestAdapter_Close_NothingInProgress(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)
	adapter.Close()

	if len(cb.getFinals()) != 0 {
		t.Error("expected no final when nothing was spoken")
	}
}

func TestDefaultUtterances(t *testing.T) {
	for i, utt := range DefaultUtterances {
		if len(utt.Partials) == 0 {
			t.Errorf("utterance %d has no partials", i)
		}
		if utt.Final == "" {
			t.Errorf("utterance %d has empty final", i)
		}
		if utt.Confidence <= 0 || utt.Confidence > 1 {
			t.Errorf("utterance %d has invalid confidence %f", i, utt.Confidence)
		}
	}
}

func TestAdapter_ThreadSafety(t *testing.T) {
	adapter := New()
	adapter.Start(context.Background(), &testCallback{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				adapter.SendAudio(context.Background(), []byte("audio"))
			}
		}()
	}

	wg.Wait()
	adapter.Close()
}

func TestAdapter_NoCallbackSet(t *testing.T) {
	adapter := New()

	if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
