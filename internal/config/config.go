package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration, grouped by concern.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	Fallback      FallbackConfig
	Kafka         KafkaConfig
	Reconnect     ReconnectConfig
	Session       SessionConfig
	Dictionary    DictionaryConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service to downstream consumers.
type ServiceConfig struct {
	Principal string
	Purpose   string
}

// STTConfig selects and configures the live transcription source.
type STTConfig struct {
	Provider           string // mock, google, websocket
	LanguageCode       string
	SampleRateHz       int
	InterimResults     bool
	AudioEncoding      string
	Model              string
	SpeechStartTimeout time.Duration
	WebsocketURL       string
	APIKey             string
}

// FallbackConfig selects the whole-clip transcription provider.
type FallbackConfig struct {
	Provider   string // none, mock, google, openai, http
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// KafkaConfig configures publication of extraction events.
type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	TopicMedications string
	TopicMedicalData string
	TopicUrgency     string
	Principal        string
}

// ReconnectConfig bounds live-caption reconnection.
type ReconnectConfig struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// SessionConfig tunes a dictation session.
type SessionConfig struct {
	GuardDelay      time.Duration
	ExtractInterval time.Duration
	MaxLiveBytes    int64
}

// DictionaryConfig points at optional vocabulary files.
type DictionaryConfig struct {
	PhrasesFile   string
	FormularyFile string
}

// ObservabilityConfig configures logging and the metrics endpoint.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

var (
	sttProviders      = []string{"mock", "google", "websocket"}
	fallbackProviders = []string{"none", "mock", "google", "openai", "http"}
)

var defaults = map[string]any{
	"SERVICE_PRINCIPAL":        "svc-clinical-dictation",
	"DICTATION_PURPOSE":        "notes",
	"STT_PROVIDER":             "mock",
	"STT_LANGUAGE_CODE":        "en-US",
	"STT_SAMPLE_RATE_HZ":       16000,
	"STT_INTERIM_RESULTS":      true,
	"STT_AUDIO_ENCODING":       "LINEAR16",
	"STT_MODEL":                "medical_dictation",
	"STT_SPEECH_START_TIMEOUT": "10s",
	"STT_WEBSOCKET_URL":        "",
	"STT_API_KEY":              "",
	"FALLBACK_PROVIDER":        "none",
	"FALLBACK_ENDPOINT":        "",
	"FALLBACK_API_KEY":         "",
	"FALLBACK_MODEL":           "",
	"FALLBACK_TIMEOUT":         "60s",
	"FALLBACK_MAX_RETRIES":     3,
	"KAFKA_ENABLED":            false,
	"KAFKA_BROKERS":            "localhost:9092",
	"KAFKA_TOPIC_MEDICATIONS":  "dictation.medications.v1",
	"KAFKA_TOPIC_MEDICAL_DATA": "dictation.medical-data.v1",
	"KAFKA_TOPIC_URGENCY":      "dictation.urgency.v1",
	"KAFKA_PRINCIPAL":          "",
	"RECONNECT_BASE":           "500ms",
	"RECONNECT_MAX":            "8s",
	"RECONNECT_MAX_ATTEMPTS":   5,
	"SESSION_GUARD_DELAY":      "1500ms",
	"SESSION_EXTRACT_INTERVAL": "0s",
	"SESSION_MAX_LIVE_BYTES":   0,
	"PHRASES_FILE":             "",
	"FORMULARY_FILE":           "",
	"LOG_LEVEL":                "info",
	"LOG_FORMAT":               "json",
	"METRICS_ADDR":             ":9090",
}

// Load reads configuration from the environment and, when DICTATION_CONFIG
// names a YAML file, from that file. Environment variables win over the file.
// Values that fail to parse fall back to their defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		v.BindEnv(key)
	}
	v.BindEnv("DICTATION_CONFIG")

	if path := v.GetString("DICTATION_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Service: ServiceConfig{
			Principal: stringOrDefault(v, "SERVICE_PRINCIPAL"),
			Purpose:   strings.ToLower(stringOrDefault(v, "DICTATION_PURPOSE")),
		},
		STT: STTConfig{
			Provider:           strings.ToLower(stringOrDefault(v, "STT_PROVIDER")),
			LanguageCode:       stringOrDefault(v, "STT_LANGUAGE_CODE"),
			SampleRateHz:       intOrDefault(v, "STT_SAMPLE_RATE_HZ"),
			InterimResults:     boolOrDefault(v, "STT_INTERIM_RESULTS"),
			AudioEncoding:      stringOrDefault(v, "STT_AUDIO_ENCODING"),
			Model:              stringOrDefault(v, "STT_MODEL"),
			SpeechStartTimeout: durationOrDefault(v, "STT_SPEECH_START_TIMEOUT"),
			WebsocketURL:       v.GetString("STT_WEBSOCKET_URL"),
			APIKey:             v.GetString("STT_API_KEY"),
		},
		Fallback: FallbackConfig{
			Provider:   strings.ToLower(stringOrDefault(v, "FALLBACK_PROVIDER")),
			Endpoint:   v.GetString("FALLBACK_ENDPOINT"),
			APIKey:     v.GetString("FALLBACK_API_KEY"),
			Model:      v.GetString("FALLBACK_MODEL"),
			Timeout:    durationOrDefault(v, "FALLBACK_TIMEOUT"),
			MaxRetries: intOrDefault(v, "FALLBACK_MAX_RETRIES"),
		},
		Kafka: KafkaConfig{
			Enabled:          boolOrDefault(v, "KAFKA_ENABLED"),
			Brokers:          splitList(stringOrDefault(v, "KAFKA_BROKERS")),
			TopicMedications: stringOrDefault(v, "KAFKA_TOPIC_MEDICATIONS"),
			TopicMedicalData: stringOrDefault(v, "KAFKA_TOPIC_MEDICAL_DATA"),
			TopicUrgency:     stringOrDefault(v, "KAFKA_TOPIC_URGENCY"),
			Principal:        v.GetString("KAFKA_PRINCIPAL"),
		},
		Reconnect: ReconnectConfig{
			Base:        durationOrDefault(v, "RECONNECT_BASE"),
			Max:         durationOrDefault(v, "RECONNECT_MAX"),
			MaxAttempts: intOrDefault(v, "RECONNECT_MAX_ATTEMPTS"),
		},
		Session: SessionConfig{
			GuardDelay:      durationOrDefault(v, "SESSION_GUARD_DELAY"),
			ExtractInterval: durationOrDefault(v, "SESSION_EXTRACT_INTERVAL"),
			MaxLiveBytes:    int64(intOrDefault(v, "SESSION_MAX_LIVE_BYTES")),
		},
		Dictionary: DictionaryConfig{
			PhrasesFile:   v.GetString("PHRASES_FILE"),
			FormularyFile: v.GetString("FORMULARY_FILE"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    strings.ToLower(stringOrDefault(v, "LOG_LEVEL")),
			LogFormat:   strings.ToLower(stringOrDefault(v, "LOG_FORMAT")),
			MetricsAddr: v.GetString("METRICS_ADDR"),
		},
	}

	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}

	return cfg, nil
}

// Validate checks that the selected providers are known and carry the
// settings they need.
func (c *Config) Validate() error {
	if !contains(sttProviders, c.STT.Provider) {
		return fmt.Errorf("STT_PROVIDER must be one of %s, got %q", strings.Join(sttProviders, ", "), c.STT.Provider)
	}
	if c.STT.Provider == "websocket" && c.STT.WebsocketURL == "" {
		return fmt.Errorf("STT_WEBSOCKET_URL is required when STT_PROVIDER is \"websocket\"")
	}
	if !contains(fallbackProviders, c.Fallback.Provider) {
		return fmt.Errorf("FALLBACK_PROVIDER must be one of %s, got %q", strings.Join(fallbackProviders, ", "), c.Fallback.Provider)
	}
	if c.Fallback.Provider == "http" && c.Fallback.Endpoint == "" {
		return fmt.Errorf("FALLBACK_ENDPOINT is required when FALLBACK_PROVIDER is \"http\"")
	}
	if c.Fallback.Provider == "openai" && c.Fallback.APIKey == "" {
		return fmt.Errorf("FALLBACK_API_KEY is required when FALLBACK_PROVIDER is \"openai\"")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if c.Reconnect.Max < c.Reconnect.Base {
		return fmt.Errorf("RECONNECT_MAX (%s) must not be below RECONNECT_BASE (%s)", c.Reconnect.Max, c.Reconnect.Base)
	}
	return nil
}

func stringOrDefault(v *viper.Viper, key string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return fmt.Sprint(defaults[key])
}

func intOrDefault(v *viper.Viper, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil || n < 0 {
		return defaults[key].(int)
	}
	return n
}

func boolOrDefault(v *viper.Viper, key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return defaults[key].(bool)
	}
	return b
}

func durationOrDefault(v *viper.Viper, key string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(defaults[key].(string))
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
