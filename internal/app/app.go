package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"clinical-dictation-service/internal/config"
	"clinical-dictation-service/internal/events"
	"clinical-dictation-service/internal/observability"
	"clinical-dictation-service/internal/observability/logging"
	"clinical-dictation-service/internal/observability/metrics"
	"clinical-dictation-service/internal/service/dictation"
	"clinical-dictation-service/internal/service/fallback"
	fallbackgoogle "clinical-dictation-service/internal/service/fallback/google"
	"clinical-dictation-service/internal/service/fallback/httpapi"
	fallbackmock "clinical-dictation-service/internal/service/fallback/mock"
	fallbackopenai "clinical-dictation-service/internal/service/fallback/openai"
	"clinical-dictation-service/internal/service/medication"
	"clinical-dictation-service/internal/service/segment"
	"clinical-dictation-service/internal/service/stt"
	sttgoogle "clinical-dictation-service/internal/service/stt/google"
	sttmock "clinical-dictation-service/internal/service/stt/mock"
	"clinical-dictation-service/internal/service/stt/websocket"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Metrics     *metrics.Metrics

	publisher *events.Publisher
	server    *observability.Server
	formulary *medication.Formulary
	closers   []func() error
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	a.Logger.Info().
		Str("method", "New").
		Str("sttProvider", cfg.STT.Provider).
		Str("fallbackProvider", cfg.Fallback.Provider).
		Msg("Clinical dictation application created")
	return a
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	lc := logging.DefaultConfig()
	if a.Cfg.Observability.LogLevel != "" {
		lc.Level = a.Cfg.Observability.LogLevel
	}
	if a.Cfg.Observability.LogFormat != "" {
		lc.Format = a.Cfg.Observability.LogFormat
	}
	logging.Init(lc)

	a.Logger = log.With().
		Str("service", "clinical-dictation-service").
		Str("component", "application").
		Logger()

	a.Logger.Debug().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", lc.Format).
		Msg("Logger setup completed")
}

// Start serves metrics and health endpoints when an address is configured.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()

	if addr := a.Cfg.Observability.MetricsAddr; addr != "" {
		a.server = observability.NewServer(addr, func() bool { return !a.StartupTime.IsZero() })
		a.server.Start()
	}

	a.Logger.Info().
		Str("method", "Start").
		Time("startupTime", a.StartupTime).
		Msg("Clinical dictation service starting")
	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	logger := a.Logger.With().Str("method", "Shutdown").Logger()

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("Observability server shutdown failed")
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("Publisher close failed")
		}
		a.publisher = nil
	}

	logger.Info().Msg("Clinical dictation service shutting down")
}

// Purpose returns the configured default purpose.
func (a *Application) Purpose() (dictation.Purpose, error) {
	return dictation.ParsePurpose(a.Cfg.Service.Purpose)
}

// Formulary loads the configured formulary once. Without a file it is nil.
func (a *Application) Formulary() (*medication.Formulary, error) {
	if a.formulary != nil || a.Cfg.Dictionary.FormularyFile == "" {
		return a.formulary, nil
	}
	f, err := medication.LoadFormulary(a.Cfg.Dictionary.FormularyFile)
	if err != nil {
		return nil, err
	}
	a.Logger.Info().Int("names", f.Len()).Msg("Formulary loaded")
	a.formulary = f
	return f, nil
}

// Pipeline builds the extraction pipeline from the configured vocabulary.
func (a *Application) Pipeline() (*dictation.Pipeline, error) {
	opts := []dictation.PipelineOption{dictation.WithPipelineMetrics(a.Metrics)}

	if path := a.Cfg.Dictionary.PhrasesFile; path != "" {
		phrases, err := segment.LoadPhrases(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dictation.WithSegmenter(segment.NewSegmenter(phrases)))
	}

	f, err := a.Formulary()
	if err != nil {
		return nil, err
	}
	if f != nil {
		opts = append(opts, dictation.WithExtractor(medication.NewExtractor(medication.WithFormulary(f))))
	}

	return dictation.NewPipeline(opts...), nil
}

// Publisher returns the event publisher, creating it on first use.
func (a *Application) Publisher() *events.Publisher {
	if a.publisher == nil {
		k := a.Cfg.Kafka
		a.publisher = events.New(&events.Config{
			Enabled:          k.Enabled,
			Brokers:          k.Brokers,
			TopicMedications: k.TopicMedications,
			TopicMedicalData: k.TopicMedicalData,
			TopicUrgency:     k.TopicUrgency,
			Principal:        k.Principal,
		})
	}
	return a.publisher
}

// LiveSource builds the configured streaming transcription source.
func (a *Application) LiveSource(ctx context.Context) (stt.Adapter, string, error) {
	c := a.Cfg.STT
	switch c.Provider {
	case sttmock.ProviderName:
		return sttmock.New(), sttmock.ProviderName, nil

	case sttgoogle.ProviderName:
		adapter, err := sttgoogle.New(ctx, a.googleConfig(), a.grpcOptions()...)
		if err != nil {
			return nil, "", err
		}
		a.closers = append(a.closers, adapter.Shutdown)
		return adapter, sttgoogle.ProviderName, nil

	case websocket.ProviderName:
		wc := websocket.Config{
			URL:          c.WebsocketURL,
			APIKey:       c.APIKey,
			LanguageCode: c.LanguageCode,
			SampleRateHz: c.SampleRateHz,
		}
		f, err := a.Formulary()
		if err != nil {
			return nil, "", err
		}
		if f != nil {
			wc.Keywords = f.Names()
		}
		adapter, err := websocket.New(wc)
		if err != nil {
			return nil, "", err
		}
		return adapter, websocket.ProviderName, nil

	default:
		return nil, "", fmt.Errorf("unknown STT provider %q", c.Provider)
	}
}

// Fallback builds the configured batch transcriber. It returns nil when
// the fallback is disabled.
func (a *Application) Fallback(ctx context.Context) (fallback.Transcriber, error) {
	c := a.Cfg.Fallback
	var (
		t   fallback.Transcriber
		err error
	)

	switch c.Provider {
	case "none", "":
		return nil, nil

	case fallbackmock.ProviderName:
		t = fallbackmock.New(mockTranscript())

	case fallbackgoogle.ProviderName:
		gt, gerr := fallbackgoogle.New(ctx, a.googleConfig(), a.grpcOptions()...)
		if gerr != nil {
			return nil, gerr
		}
		a.closers = append(a.closers, gt.Close)
		t = gt

	case fallbackopenai.ProviderName:
		opts := []fallbackopenai.Option{fallbackopenai.WithMaxRetries(c.MaxRetries)}
		if c.Endpoint != "" {
			opts = append(opts, fallbackopenai.WithBaseURL(c.Endpoint))
		}
		if c.Timeout > 0 {
			opts = append(opts, fallbackopenai.WithTimeout(c.Timeout))
		}
		t, err = fallbackopenai.New(c.APIKey, c.Model, opts...)

	case httpapi.ProviderName:
		t, err = httpapi.NewClient(httpapi.Config{
			Endpoint:   c.Endpoint,
			APIKey:     c.APIKey,
			Model:      c.Model,
			Timeout:    c.Timeout,
			MaxRetries: c.MaxRetries,
		})

	default:
		return nil, fmt.Errorf("unknown fallback provider %q", c.Provider)
	}
	if err != nil {
		return nil, err
	}
	return fallback.Instrument(c.Provider, t, a.Metrics), nil
}

// SessionConfig maps configuration onto session settings for purpose.
func (a *Application) SessionConfig(purpose dictation.Purpose) dictation.Config {
	cfg := dictation.DefaultConfig(purpose)
	cfg.LanguageCode = a.Cfg.STT.LanguageCode
	cfg.Backoff = dictation.Backoff{
		Base:        a.Cfg.Reconnect.Base,
		Max:         a.Cfg.Reconnect.Max,
		MaxAttempts: a.Cfg.Reconnect.MaxAttempts,
	}
	cfg.GuardDelay = a.Cfg.Session.GuardDelay
	cfg.ExtractInterval = a.Cfg.Session.ExtractInterval
	cfg.MaxLiveBytes = a.Cfg.Session.MaxLiveBytes
	return cfg
}

// NewSession wires a dictation session with the configured providers. The
// event sink is always attached after sink.
func (a *Application) NewSession(ctx context.Context, purpose dictation.Purpose, sink dictation.Sink, live bool) (*dictation.Session, error) {
	pipeline, err := a.Pipeline()
	if err != nil {
		return nil, err
	}

	opts := []dictation.Option{dictation.WithMetrics(a.Metrics)}
	if live {
		adapter, provider, err := a.LiveSource(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dictation.WithLiveSource(adapter, provider))
	}
	t, err := a.Fallback(ctx)
	if err != nil {
		return nil, err
	}
	if t != nil {
		opts = append(opts, dictation.WithFallback(t))
	}

	sinks := dictation.MultiSink{events.NewEventSink(a.Publisher())}
	if sink != nil {
		sinks = append(dictation.MultiSink{sink}, sinks...)
	}
	return dictation.NewSession(a.SessionConfig(purpose), pipeline, sinks, opts...), nil
}

func (a *Application) googleConfig() sttgoogle.Config {
	c := a.Cfg.STT
	gc := sttgoogle.DefaultConfig()
	gc.LanguageCode = c.LanguageCode
	gc.SampleRateHz = c.SampleRateHz
	gc.InterimResults = c.InterimResults
	gc.AudioEncoding = c.AudioEncoding
	gc.Model = c.Model
	gc.SpeechStartTimeout = c.SpeechStartTimeout
	return gc
}

func (a *Application) grpcOptions() []option.ClientOption {
	var opts []option.ClientOption
	for _, d := range observability.DialOptions(a.Metrics) {
		opts = append(opts, option.WithGRPCDialOption(d))
	}
	return opts
}

func mockTranscript() string {
	finals := make([]string, 0, len(sttmock.DefaultUtterances))
	for _, u := range sttmock.DefaultUtterances {
		finals = append(finals, u.Final)
	}
	return strings.Join(finals, " ")
}
