// Package dictation runs clinical dictation sessions: audio capture, live
// captions with reconnect, command-driven medication extraction and the
// final processing pass that produces structured records.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinical-dictation-service/internal/models"
	"clinical-dictation-service/internal/observability/logging"
	"clinical-dictation-service/internal/observability/metrics"
	"clinical-dictation-service/internal/service/capture"
	"clinical-dictation-service/internal/service/fallback"
	"clinical-dictation-service/internal/service/segment"
	"clinical-dictation-service/internal/service/stt"
	"clinical-dictation-service/internal/service/transcript"
)

// ErrSessionActive is returned by Start while a dictation is capturing.
var ErrSessionActive = errors.New("dictation session already active")

// ErrSessionClosed is returned by Start when Close ran before capture began.
var ErrSessionClosed = errors.New("dictation closed before capture started")

// eventBuffer bounds callbacks queued for the event loop.
const eventBuffer = 64

// Config controls session behaviour.
type Config struct {
	Purpose      Purpose
	LanguageCode string
	Backoff      Backoff
	// GuardDelay is how long a repeated command is ignored after extraction.
	GuardDelay time.Duration
	// ExtractInterval enables periodic classification of the finalized
	// text while recording. Zero disables it.
	ExtractInterval time.Duration
	// MaxLiveBytes stops live captions once this much audio was streamed.
	// Recording continues and the fallback transcribes the clip. Zero means no limit.
	MaxLiveBytes int64
}

// DefaultConfig returns the defaults for purpose.
func DefaultConfig(purpose Purpose) Config {
	return Config{
		Purpose:      purpose,
		LanguageCode: "en-US",
		Backoff:      DefaultBackoff(),
		GuardDelay:   1500 * time.Millisecond,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLiveSource enables live captions from adapter. Without it the
// recording is transcribed by the fallback when the session stops.
func WithLiveSource(adapter stt.Adapter, provider string) Option {
	return func(s *Session) {
		s.live = adapter
		s.provider = provider
	}
}

// WithFallback sets the batch transcriber used when live captions are
// unavailable, lost or produced nothing.
func WithFallback(t fallback.Transcriber) Option {
	return func(s *Session) { s.fallback = t }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is one dictation surface. At most one dictation runs at a time;
// starting a new one while the previous is still processing cancels it and
// discards its results.
type Session struct {
	cfg      Config
	pipeline *Pipeline
	sink     Sink
	live     stt.Adapter
	provider string
	fallback fallback.Transcriber
	metrics  *metrics.Metrics

	lifecycle    *Lifecycle
	utteranceIDs *segment.Generator

	mu      sync.Mutex
	current *run

	// sinkMu serializes sink calls and makes cancellation of a superseded
	// run atomic with respect to them.
	sinkMu sync.Mutex
}

// NewSession creates an idle session. The sink must not call back into the
// session.
func NewSession(cfg Config, pipeline *Pipeline, sink Sink, opts ...Option) *Session {
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	if sink == nil {
		sink = SinkFuncs{}
	}
	if cfg.Backoff.MaxAttempts == 0 && cfg.Backoff.Base == 0 {
		cfg.Backoff = DefaultBackoff()
	}
	s := &Session{
		cfg:          cfg,
		pipeline:     pipeline,
		sink:         sink,
		provider:     "none",
		metrics:      metrics.DefaultMetrics,
		lifecycle:    NewLifecycle(),
		utteranceIDs: segment.New(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// run is the state of one dictation. The event loop state is owned by the
// loop goroutine until it exits, then by the stopping goroutine.
type run struct {
	id       string
	meta     Meta
	log      zerolog.Logger
	liveLog  zerolog.Logger
	recorder capture.Recorder
	started  time.Time

	ctx         context.Context // cancelled when superseded or closed
	cancel      context.CancelFunc
	liveCtx     context.Context
	liveCancel  context.CancelFunc
	retryCtx    context.Context
	retryCancel context.CancelFunc
	retries     sync.WaitGroup
	retryMu     sync.Mutex
	retryClosed bool

	events   chan func()
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	liveActive atomic.Bool
	liveBytes  atomic.Int64

	// event loop state
	agg           *transcript.Aggregator
	stream        uint64
	liveStarted   bool
	liveLost      bool
	guard         bool
	guardTimer    *time.Timer
	lastCommand   string
	lastUtterance string
	terminated    bool
	meds          []models.StructuredMedication
	lastExtracted string
}

// post queues fn for the event loop. Events arriving after the loop exited
// are dropped.
func (r *run) post(fn func()) {
	select {
	case r.events <- fn:
	case <-r.done:
	}
}

func (r *run) shutdown() {
	r.quitOnce.Do(func() { close(r.quit) })
	<-r.done
}

// Start begins a dictation captured by recorder and returns its session ID.
// Permission and device failures are returned and also reported as status.
func (s *Session) Start(ctx context.Context, recorder capture.Recorder) (string, error) {
	s.mu.Lock()
	switch state := s.lifecycle.State(); state {
	case StateIdle:
	case StateProcessing:
		if prev := s.current; prev != nil {
			s.sinkMu.Lock()
			prev.cancel()
			s.sinkMu.Unlock()
			prev.log.Info().Msg("Superseded by a new dictation, discarding pending results")
		}
		s.lifecycle.Fail()
	default:
		s.mu.Unlock()
		return "", fmt.Errorf("%w (state %s)", ErrSessionActive, state)
	}
	r := s.newRun(ctx, recorder)
	s.current = r
	_ = s.lifecycle.Transition(StateRequestingPermission)
	s.mu.Unlock()

	go s.loop(r)
	s.status(r, StatusRequesting)

	if err := recorder.Start(r.ctx, s.onChunk(r)); err != nil {
		msg, reason := StatusNoDevice, "device"
		if errors.Is(err, capture.ErrPermissionDenied) {
			msg, reason = StatusDenied, "permission"
		}
		r.log.Error().Err(err).Msg("Audio capture failed to start")
		s.metrics.RecordSessionFailed(reason)
		s.status(r, msg)
		s.abandon(r)
		return "", fmt.Errorf("start capture: %w", err)
	}

	s.mu.Lock()
	err := ErrSessionClosed
	if s.current == r && r.ctx.Err() == nil {
		err = s.lifecycle.Transition(StateRecording)
	}
	s.mu.Unlock()
	if err != nil {
		// Closed or superseded while waiting for the device.
		_ = recorder.Stop()
		_ = recorder.Release()
		s.abandon(r)
		return "", fmt.Errorf("start dictation: %w", err)
	}
	r.started = time.Now()

	s.metrics.RecordSessionStart(string(r.meta.Purpose))
	r.log.Info().Str("provider", s.provider).Msg("Dictation started")
	s.status(r, StatusRecording)

	if s.live == nil {
		r.post(func() { r.liveLost = true })
		return r.id, nil
	}

	if err := s.live.Start(r.liveCtx, streamCallback{s: s, r: r, stream: 1}); err != nil {
		r.liveLog.Warn().Err(err).Msg("Live stream failed to start")
		r.post(func() { s.handleStreamError(r, 1, err) })
		return r.id, nil
	}
	r.post(func() { r.liveStarted = true })
	r.liveActive.Store(true)
	return r.id, nil
}

func (s *Session) newRun(ctx context.Context, recorder capture.Recorder) *run {
	id := uuid.NewString()
	purpose := s.cfg.Purpose
	if purpose == "" {
		purpose = PurposeNotes
	}

	base := context.WithoutCancel(ctx)
	r := &run{
		id:       id,
		meta:     Meta{SessionID: id, Purpose: purpose},
		log:      logging.WithSession(id, string(purpose)),
		liveLog:  logging.WithProvider(id, s.provider),
		recorder: recorder,
		started:  time.Now(),
		events:   make(chan func(), eventBuffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		agg:      transcript.New(),
		stream:   1,
	}
	r.ctx, r.cancel = context.WithCancel(base)
	r.liveCtx, r.liveCancel = context.WithCancel(r.ctx)
	r.retryCtx, r.retryCancel = context.WithCancel(r.ctx)
	return r
}

// abandon tears down a run that never reached recording.
func (s *Session) abandon(r *run) {
	s.mu.Lock()
	if s.current == r {
		s.lifecycle.Fail()
	}
	s.mu.Unlock()

	r.retryCancel()
	r.liveCancel()
	r.shutdown()
	r.cancel()
}

// Stop ends the current dictation: the live stream is closed, capture is
// stopped and the device released, and only then is the recording
// processed. Stop returns after the results were delivered. It is a no-op
// when nothing is capturing.
func (s *Session) Stop() {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()
	if r != nil {
		s.stop(r)
	}
}

func (s *Session) stop(r *run) {
	s.mu.Lock()
	if s.current != r || s.lifecycle.Transition(StateStopping) != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	defer func() {
		s.metrics.RecordSessionEnd(time.Since(r.started).Seconds())
		r.cancel()
	}()

	s.releaseHandles(r)

	if err := s.lifecycle.Transition(StateProcessing); err != nil {
		// Closed while stopping.
		r.shutdown()
		return
	}
	s.status(r, StatusProcessing)

	s.drain(r)
	s.finish(r)
}

// releaseHandles stops the live stream, stops capture and releases the
// device, in that order.
func (s *Session) releaseHandles(r *run) {
	r.liveActive.Store(false)
	r.retryMu.Lock()
	r.retryClosed = true
	r.retryMu.Unlock()
	r.retryCancel()
	r.retries.Wait()

	if s.live != nil {
		if err := s.live.Close(); err != nil {
			r.liveLog.Warn().Err(err).Msg("Failed to close live stream")
		}
	}
	r.liveCancel()

	if err := r.recorder.Stop(); err != nil {
		r.log.Warn().Err(err).Msg("Failed to stop capture")
	}
	if err := r.recorder.Release(); err != nil {
		r.log.Warn().Err(err).Msg("Failed to release audio device")
	}
}

// drain waits until every queued callback was applied, then stops the loop.
func (s *Session) drain(r *run) {
	ack := make(chan struct{})
	r.post(func() { close(ack) })
	select {
	case <-ack:
	case <-r.done:
	}
	r.shutdown()
	if r.guardTimer != nil {
		r.guardTimer.Stop()
	}
}

// finish produces the final results of a stopped dictation.
func (s *Session) finish(r *run) {
	text := r.agg.FinalText()
	meds := r.meds
	finals, _ := r.agg.Counts()
	failed := false

	if s.fallback != nil && (!r.liveStarted || r.liveLost || finals == 0) {
		s.status(r, StatusTranscribing)
		clip := r.recorder.Clip()
		if clip.LanguageCode == "" {
			clip.LanguageCode = s.cfg.LanguageCode
		}

		fbText, err := s.fallback.Transcribe(r.ctx, clip)
		switch {
		case r.ctx.Err() != nil:
			r.log.Info().Msg("Fallback transcription discarded")
			return
		case err != nil:
			r.log.Warn().Err(err).Msg("Fallback transcription failed")
			s.status(r, fallback.Message(err))
			failed = true
		default:
			// The recording covers everything the live stream extracted.
			text = fbText
			meds = nil
		}
	}

	stages := r.meta.Purpose.Stages()
	res, err := s.pipeline.Process(r.ctx, stages, text)
	if err != nil {
		r.log.Info().Err(err).Msg("Processing discarded")
		return
	}

	if stages.Has(StageMedications) {
		all := mergeMedications(meds, res.Medications)
		s.logUtterances(r, res.Utterances)
		if len(all) > 0 {
			s.emit(r, func(k Sink) { k.OnMedicationsExtracted(r.meta, all) })
		}
	}
	if strings.TrimSpace(text) != "" {
		if res.MedicalData != nil {
			data := *res.MedicalData
			s.emit(r, func(k Sink) { k.OnMedicalDataExtracted(r.meta, data) })
		}
		if res.Urgency != nil {
			assessment := *res.Urgency
			s.emit(r, func(k Sink) { k.OnUrgencyComputed(r.meta, assessment) })
		}
	}

	s.mu.Lock()
	if s.current == r {
		_ = s.lifecycle.Transition(StateIdle)
	}
	s.mu.Unlock()

	r.log.Info().
		Int("finals", finals).
		Bool("liveLost", r.liveLost).
		Dur("duration", time.Since(r.started)).
		Msg("Dictation complete")
	if !failed {
		s.status(r, StatusComplete)
	}
}

// Close abandons the current dictation without processing it and releases
// every handle. A later Start begins a fresh dictation.
func (s *Session) Close() {
	s.mu.Lock()
	r := s.current
	if r == nil {
		s.mu.Unlock()
		return
	}
	s.sinkMu.Lock()
	r.cancel()
	s.sinkMu.Unlock()
	prev := s.lifecycle.Fail()
	s.current = nil
	s.mu.Unlock()

	r.log.Info().Str("state", prev.String()).Msg("Dictation closed")
	if prev.Capturing() {
		s.releaseHandles(r)
		r.shutdown()
		s.metrics.RecordSessionEnd(time.Since(r.started).Seconds())
	}
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// ID returns the current dictation's session ID, or "" when none.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.id
}

// Transcript returns the running transcript for live display.
func (s *Session) Transcript() models.RunningTranscript {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()
	if r == nil {
		return models.RunningTranscript{}
	}
	return r.agg.Snapshot()
}

// loop applies callbacks one at a time in arrival order.
func (s *Session) loop(r *run) {
	defer close(r.done)

	var tick <-chan time.Time
	if s.cfg.ExtractInterval > 0 && r.meta.Purpose.Stages()&^StageMedications != 0 {
		t := time.NewTicker(s.cfg.ExtractInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case fn := <-r.events:
			fn()
		case <-tick:
			s.extractPeriodic(r)
		case <-r.quit:
			return
		}
	}
}

// onChunk forwards captured audio to the live stream while it is healthy.
func (s *Session) onChunk(r *run) func([]byte) {
	return func(chunk []byte) {
		if !r.liveActive.Load() {
			return
		}
		n := r.liveBytes.Add(int64(len(chunk)))
		if limit := s.cfg.MaxLiveBytes; limit > 0 && n > limit {
			if r.liveActive.CompareAndSwap(true, false) {
				r.post(func() { s.dropLive(r, fmt.Sprintf("max live bytes exceeded: %d > %d", n, limit)) })
			}
			return
		}
		if err := s.live.SendAudio(r.liveCtx, chunk); err != nil {
			r.post(func() { s.handleSendError(r, err) })
			return
		}
		s.metrics.RecordAudioSent(len(chunk))
	}
}

// streamCallback tags callbacks with the stream they came from so that
// events from a replaced stream are discarded.
type streamCallback struct {
	s      *Session
	r      *run
	stream uint64
}

func (c streamCallback) OnPartial(text string) {
	seg := models.TranscriptSegment{Text: text, Timestamp: time.Now()}
	c.r.post(func() { c.s.onSegment(c.r, c.stream, seg) })
}

func (c streamCallback) OnFinal(text string, confidence float64) {
	seg := models.TranscriptSegment{Text: text, IsFinal: true, Timestamp: time.Now(), Confidence: confidence}
	c.r.post(func() { c.s.onSegment(c.r, c.stream, seg) })
}

func (c streamCallback) OnError(err error) {
	c.r.post(func() { c.s.handleStreamError(c.r, c.stream, err) })
}

func (s *Session) onSegment(r *run, stream uint64, seg models.TranscriptSegment) {
	if stream != r.stream {
		s.metrics.RecordTranscriptDropped("stale_stream")
		return
	}
	if !seg.IsFinal {
		s.metrics.RecordPartialTranscript()
		r.agg.OnSegment(seg)
		return
	}

	s.metrics.RecordFinalTranscript()
	if r.guard && s.repeatsLastCommand(r, seg.Text) {
		s.metrics.RecordTranscriptDropped("repeated_command")
		r.log.Debug().Str("text", seg.Text).Msg("Repeated command ignored")
		return
	}
	r.agg.OnSegment(seg)

	if !r.terminated && r.meta.Purpose.Stages().Has(StageMedications) {
		s.extractCommands(r)
	}
}

// repeatsLastCommand reports whether a final only re-emits the command that
// was just consumed, optionally with the tail of the utterance before it.
func (s *Session) repeatsLastCommand(r *run, text string) bool {
	res := s.pipeline.Segmenter().Scan(text)
	if res.Commands != 1 || res.Last != r.lastCommand || res.Remainder != "" {
		return false
	}
	switch len(res.Utterances) {
	case 0:
		return true
	case 1:
		return strings.HasSuffix(strings.ToLower(r.lastUtterance), strings.ToLower(res.Utterances[0]))
	default:
		return false
	}
}

// extractCommands parses every utterance closed by a command phrase in the
// finalized text and consumes it.
func (s *Session) extractCommands(r *run) {
	res := s.pipeline.Segmenter().Scan(r.agg.FinalText())
	if res.Commands == 0 {
		return
	}
	r.agg.Consume(res.Consumed)
	r.lastCommand = res.Last
	if n := len(res.Utterances); n > 0 {
		r.lastUtterance = res.Utterances[n-1]
		s.logUtterances(r, res.Utterances)
		r.meds = mergeMedications(r.meds, s.pipeline.Medications(res.Utterances))
		meds := append([]models.StructuredMedication(nil), r.meds...)
		s.emit(r, func(k Sink) { k.OnMedicationsExtracted(r.meta, meds) })
	}

	r.guard = true
	if r.guardTimer != nil {
		r.guardTimer.Stop()
	}
	r.guardTimer = time.AfterFunc(s.cfg.GuardDelay, func() {
		r.post(func() { r.guard = false })
	})

	if res.Terminated {
		r.terminated = true
		r.log.Info().Str("command", res.Last).Msg("Terminate command heard")
		go s.stop(r)
	}
}

func (s *Session) logUtterances(r *run, utterances []string) {
	for _, u := range utterances {
		r.log.Debug().
			Str("utteranceId", s.utteranceIDs.Next(r.id)).
			Str("text", u).
			Msg("Utterance")
	}
}

func (s *Session) extractPeriodic(r *run) {
	if !s.lifecycle.State().Capturing() {
		return
	}
	text := r.agg.FinalText()
	if strings.TrimSpace(text) == "" || text == r.lastExtracted {
		return
	}
	r.lastExtracted = text

	res, err := s.pipeline.Process(r.ctx, r.meta.Purpose.Stages()&^StageMedications, text)
	if err != nil {
		return
	}
	if res.MedicalData != nil {
		data := *res.MedicalData
		s.emit(r, func(k Sink) { k.OnMedicalDataExtracted(r.meta, data) })
	}
	if res.Urgency != nil {
		assessment := *res.Urgency
		s.emit(r, func(k Sink) { k.OnUrgencyComputed(r.meta, assessment) })
	}
}

func (s *Session) handleSendError(r *run, err error) {
	if r.liveLost || !r.liveActive.Load() {
		return
	}
	s.handleStreamError(r, r.stream, err)
}

// handleStreamError applies the stream error policy: network errors
// reconnect, no-speech and aborted are ignored, anything else ends live
// captions for this dictation while recording continues.
func (s *Session) handleStreamError(r *run, stream uint64, err error) {
	if stream != r.stream {
		return
	}
	code := stt.Classify(err)
	s.metrics.RecordStreamError(s.provider, string(code))

	switch {
	case code.Retryable():
		r.retryMu.Lock()
		defer r.retryMu.Unlock()
		if r.retryClosed {
			return
		}
		if terr := s.lifecycle.Transition(StateReconnecting); terr != nil {
			r.liveLog.Debug().Err(terr).Msg("Reconnect skipped")
			return
		}
		r.liveActive.Store(false)
		r.stream++
		r.liveLog.Warn().Err(err).Msg("Live stream lost, reconnecting")
		s.status(r, StatusReconnecting)
		r.retries.Add(1)
		go s.reconnect(r, r.stream)

	case code.Fatal():
		r.liveActive.Store(false)
		r.liveLost = true
		r.stream++
		r.liveLog.Error().Err(err).Msg("Live stream failed")
		s.status(r, fmt.Sprintf("Live captions failed: %v", err))

	default:
		r.liveLog.Debug().Str("code", string(code)).Msg("Live stream notice")
	}
}

// reconnect retries the live stream with backoff until it succeeds, the
// attempts run out or the dictation stops.
func (s *Session) reconnect(r *run, stream uint64) {
	defer r.retries.Done()

	b := s.cfg.Backoff
	for attempt := 0; !b.Exhausted(attempt); attempt++ {
		delay := b.Delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-r.retryCtx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.metrics.RecordReconnectAttempt()
		err := s.live.Start(r.liveCtx, streamCallback{s: s, r: r, stream: stream})
		if err == nil {
			n := attempt + 1
			r.post(func() { s.reconnected(r, stream, n) })
			return
		}
		r.liveLog.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("Reconnect failed")
		if !stt.Classify(err).Retryable() {
			break
		}
	}
	r.post(func() { s.liveGaveUp(r, stream) })
}

func (s *Session) reconnected(r *run, stream uint64, attempts int) {
	if stream != r.stream {
		return
	}
	if err := s.lifecycle.Transition(StateRecording); err != nil {
		return
	}
	s.metrics.RecordReconnectOutcome("success")
	r.liveStarted = true
	r.liveActive.Store(true)
	r.liveLog.Info().Int("attempts", attempts).Msg("Live stream reconnected")
	s.status(r, StatusRecording)
}

func (s *Session) liveGaveUp(r *run, stream uint64) {
	if stream != r.stream {
		return
	}
	s.metrics.RecordReconnectOutcome("exhausted")
	r.liveLost = true
	if err := s.lifecycle.Transition(StateRecording); err != nil {
		return
	}
	r.liveLog.Warn().Msg("Giving up on live captions")
	s.status(r, StatusLiveUnavailable)
}

func (s *Session) dropLive(r *run, reason string) {
	if r.liveLost {
		return
	}
	r.liveLost = true
	r.stream++
	s.metrics.RecordTranscriptDropped("live_limit")
	r.liveLog.Warn().Str("reason", reason).Msg("Live captions stopped")
	go func() {
		if err := s.live.Close(); err != nil {
			r.liveLog.Warn().Err(err).Msg("Failed to close live stream")
		}
	}()
	s.status(r, StatusLiveUnavailable)
}

func (s *Session) emit(r *run, fn func(Sink)) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	if r.ctx.Err() != nil {
		return
	}
	fn(s.sink)
}

func (s *Session) status(r *run, msg string) {
	r.log.Debug().Str("status", msg).Msg("Status")
	s.emit(r, func(k Sink) { k.OnStatus(r.meta, msg) })
}
