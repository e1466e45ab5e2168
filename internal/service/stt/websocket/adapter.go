// Package websocket provides a streaming adapter for Deepgram-compatible
// live transcription endpoints.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/rs/zerolog"

	"clinical-dictation-service/internal/observability/logging"
	"clinical-dictation-service/internal/service/stt"
)

// ProviderName labels metrics and logs.
const ProviderName = "websocket"

const (
	DefaultURL      = "wss://api.deepgram.com/v1/listen"
	defaultModel    = "nova-2-medical"
	closeFlushGrace = 2 * time.Second
)

// Config holds endpoint and stream settings.
type Config struct {
	URL          string
	APIKey       string
	Model        string
	LanguageCode string
	SampleRateHz int
	// Keywords are boosted during recognition, typically formulary names.
	Keywords []string
}

// Adapter implements stt.Adapter over a WebSocket connection.
type Adapter struct {
	cfg Config
	log zerolog.Logger

	mu   sync.Mutex
	conn *cws.Conn
	done chan struct{}
}

// New creates an adapter. An empty URL uses DefaultURL.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("websocket stt: parse url: %w", err)
	}
	return &Adapter{cfg: cfg, log: logging.WithComponent("stt-" + ProviderName)}, nil
}

// Start dials the endpoint and starts the read loop. A previous connection,
// if any, is dropped.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	wsURL, err := a.buildURL()
	if err != nil {
		return stt.NewError(stt.CodeOther, fmt.Errorf("build url: %w", err))
	}

	headers := http.Header{}
	if a.cfg.APIKey != "" {
		headers.Set("Authorization", "Token "+a.cfg.APIKey)
	}

	conn, _, err := cws.Dial(ctx, wsURL, &cws.DialOptions{HTTPHeader: headers})
	if err != nil {
		code := stt.Classify(err)
		if code == stt.CodeOther {
			code = stt.CodeNetwork
		}
		return stt.NewError(code, fmt.Errorf("dial: %w", err))
	}

	a.mu.Lock()
	if a.conn != nil {
		a.conn.CloseNow()
	}
	done := make(chan struct{})
	a.conn = conn
	a.done = done
	a.mu.Unlock()

	go a.readLoop(ctx, conn, done, cb)
	return nil
}

// SendAudio writes one binary frame.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return stt.NewError(stt.CodeAborted, errors.New("stream not started"))
	}
	if err := conn.Write(ctx, cws.MessageBinary, audio); err != nil {
		return stt.NewError(stt.CodeNetwork, err)
	}
	return nil
}

// Close asks the server to flush pending results and waits briefly for the
// read loop before dropping the connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	conn, done := a.conn, a.done
	a.conn, a.done = nil, nil
	a.mu.Unlock()

	if conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeFlushGrace)
	defer cancel()
	_ = conn.Write(ctx, cws.MessageText, []byte(`{"type":"CloseStream"}`))

	select {
	case <-done:
	case <-ctx.Done():
	}
	return conn.Close(cws.StatusNormalClosure, "session closed")
}

func (a *Adapter) buildURL() (string, error) {
	u, err := url.Parse(a.cfg.URL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", a.cfg.Model)
	if a.cfg.LanguageCode != "" {
		q.Set("language", a.cfg.LanguageCode)
	}
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	if a.cfg.SampleRateHz > 0 {
		q.Set("sample_rate", strconv.Itoa(a.cfg.SampleRateHz))
	}
	for _, kw := range a.cfg.Keywords {
		q.Add("keywords", kw+":2")
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// resultsMessage is the JSON structure of a Results event.
type resultsMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type transcript struct {
	text       string
	isFinal    bool
	confidence float64
}

func (a *Adapter) readLoop(ctx context.Context, conn *cws.Conn, done chan struct{}, cb stt.Callback) {
	defer close(done)

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			code, report := classifyRead(err)
			if code == stt.CodeOther {
				a.log.Debug().Err(err).Msg("Stream closed by server")
			}
			if report {
				cb.OnError(stt.NewError(code, err))
			}
			return
		}

		t, ok := parseMessage(msg)
		if !ok {
			continue
		}
		if t.isFinal {
			cb.OnFinal(t.text, t.confidence)
		} else {
			cb.OnPartial(t.text)
		}
	}
}

// classifyRead maps a read failure to a code and whether to report it.
// A normal closure ends the stream quietly.
func classifyRead(err error) (stt.Code, bool) {
	switch cws.CloseStatus(err) {
	case cws.StatusNormalClosure:
		return "", false
	case cws.StatusGoingAway, cws.StatusAbnormalClosure, cws.StatusServiceRestart, cws.StatusTryAgainLater:
		return stt.CodeNetwork, true
	case -1:
		code := stt.Classify(err)
		if code == stt.CodeOther {
			// The connection dropped without a close frame.
			code = stt.CodeNetwork
		}
		if code == stt.CodeAborted {
			return code, false
		}
		return code, true
	default:
		return stt.CodeOther, true
	}
}

// parseMessage returns the transcript carried by a Results event. Other
// event types and empty transcripts are ignored.
func parseMessage(data []byte) (transcript, bool) {
	var msg resultsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return transcript{}, false
	}
	if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
		return transcript{}, false
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return transcript{}, false
	}
	return transcript{text: alt.Transcript, isFinal: msg.IsFinal, confidence: alt.Confidence}, true
}
