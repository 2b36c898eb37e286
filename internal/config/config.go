package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceNone  = "none"
	SourceKafka = "kafka"
	SourceMock  = "mock"
)

// Storage kinds.
const (
	StorageNone     = "none"
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Meeting       MeetingConfig       `yaml:"meeting"`
	Engine        EngineConfig        `yaml:"engine"`
	Source        SourceConfig        `yaml:"source"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal   string `yaml:"principal" validate:"required"`
	GRPCPort    string `yaml:"grpcPort" validate:"required,numeric"`
	HTTPAddr    string `yaml:"httpAddr" validate:"required"`
	MetricsAddr string `yaml:"metricsAddr" validate:"required"`
}

// MeetingConfig identifies the meeting. An empty ID is generated at startup
// unless a stored snapshot provides one.
type MeetingConfig struct {
	ID string `yaml:"id"`
	// SpeakerAliases maps caption labels to display names, e.g. "You" to "You (Me)".
	SpeakerAliases map[string]string `yaml:"speakerAliases"`
}

type EngineConfig struct {
	BufferWindow          time.Duration `yaml:"bufferWindow" validate:"gt=0"`
	ConsolidationInterval time.Duration `yaml:"consolidationInterval" validate:"gt=0"`
	NotificationThrottle  time.Duration `yaml:"notificationThrottle" validate:"gte=0"`
	// AutoStart begins recording as soon as the service is up.
	AutoStart bool `yaml:"autoStart"`
}

type SourceConfig struct {
	Kind string `yaml:"kind" validate:"oneof=none kafka mock"`
}

type KafkaConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Brokers         []string `yaml:"brokers"`
	TopicCaptions   string   `yaml:"topicCaptions"`
	GroupID         string   `yaml:"groupId"`
	TopicTranscript string   `yaml:"topicTranscript"`
	TopicStatus     string   `yaml:"topicStatus"`
	Principal       string   `yaml:"principal"`
}

type StorageConfig struct {
	Kind        string `yaml:"kind" validate:"oneof=none file postgres"`
	Path        string `yaml:"path"`
	PostgresDSN string `yaml:"postgresDsn"`
}

type ObservabilityConfig struct {
	LogLevel  string `yaml:"logLevel" validate:"oneof=trace debug info warn error"`
	LogFormat string `yaml:"logFormat" validate:"oneof=json console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:   "svc-sonara-transcriber",
			GRPCPort:    "50051",
			HTTPAddr:    ":8080",
			MetricsAddr: ":9090",
		},
		Meeting: MeetingConfig{
			SpeakerAliases: map[string]string{"You": "You (Me)", "Você": "You (Me)"},
		},
		Engine: EngineConfig{
			BufferWindow:          3 * time.Second,
			ConsolidationInterval: 8 * time.Second,
			NotificationThrottle:  2 * time.Second,
		},
		Source: SourceConfig{Kind: SourceNone},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			TopicCaptions:   "meet.captions.v1",
			GroupID:         "sonara-transcriber",
			TopicTranscript: "meet.transcript.v1",
			TopicStatus:     "meet.recording.status.v1",
		},
		Storage: StorageConfig{
			Kind: StorageNone,
			Path: "transcript.json",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration from defaults, then CONFIG_FILE (YAML) if
// set, then environment variables. Unparseable env values keep the previous
// value.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	s := &cfg.Service
	s.Principal = envOrDefault("SERVICE_PRINCIPAL", s.Principal)
	s.GRPCPort = envOrDefault("GRPC_PORT", s.GRPCPort)
	s.HTTPAddr = envOrDefault("HTTP_ADDR", s.HTTPAddr)
	s.MetricsAddr = envOrDefault("METRICS_ADDR", s.MetricsAddr)

	m := &cfg.Meeting
	m.ID = envOrDefault("MEETING_ID", m.ID)
	m.SpeakerAliases = envOrDefaultMap("MEETING_SPEAKER_ALIASES", m.SpeakerAliases)

	e := &cfg.Engine
	e.BufferWindow = envOrDefaultDuration("ENGINE_BUFFER_WINDOW", e.BufferWindow)
	e.ConsolidationInterval = envOrDefaultDuration("ENGINE_CONSOLIDATION_INTERVAL", e.ConsolidationInterval)
	e.NotificationThrottle = envOrDefaultDuration("ENGINE_NOTIFICATION_THROTTLE", e.NotificationThrottle)
	e.AutoStart = envOrDefaultBool("ENGINE_AUTO_START", e.AutoStart)

	cfg.Source.Kind = envOrDefault("SOURCE_KIND", cfg.Source.Kind)

	k := &cfg.Kafka
	k.Enabled = envOrDefaultBool("KAFKA_ENABLED", k.Enabled)
	k.Brokers = envOrDefaultList("KAFKA_BROKERS", k.Brokers)
	k.TopicCaptions = envOrDefault("KAFKA_TOPIC_CAPTIONS", k.TopicCaptions)
	k.GroupID = envOrDefault("KAFKA_GROUP_ID", k.GroupID)
	k.TopicTranscript = envOrDefault("KAFKA_TOPIC_TRANSCRIPT", k.TopicTranscript)
	k.TopicStatus = envOrDefault("KAFKA_TOPIC_STATUS", k.TopicStatus)
	// Defaults to the service principal when unset.
	k.Principal = envOrDefault("KAFKA_PRINCIPAL", k.Principal)
	if k.Principal == "" {
		k.Principal = s.Principal
	}

	st := &cfg.Storage
	st.Kind = envOrDefault("STORAGE_KIND", st.Kind)
	st.Path = envOrDefault("STORAGE_PATH", st.Path)
	st.PostgresDSN = envOrDefault("STORAGE_POSTGRES_DSN", st.PostgresDSN)

	o := &cfg.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	if err := validator.New().Struct(c); err != nil {
		errs = append(errs, err)
	}
	if (c.Source.Kind == SourceKafka || c.Kafka.Enabled) && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka: brokers required"))
	}
	if c.Source.Kind == SourceKafka && c.Kafka.TopicCaptions == "" {
		errs = append(errs, errors.New("kafka: caption topic required for kafka source"))
	}
	if c.Storage.Kind == StorageFile && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage: path required for file storage"))
	}
	if c.Storage.Kind == StoragePostgres && c.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage: postgres DSN required for postgres storage"))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// envOrDefaultDuration accepts Go durations ("3s") or bare milliseconds.
func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms := envOrDefaultInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// envOrDefaultMap parses "from=to,from=to". Malformed pairs are skipped.
func envOrDefaultMap(key string, def map[string]string) map[string]string {
	items := envOrDefaultList(key, nil)
	if len(items) == 0 {
		return def
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		from, to, ok := strings.Cut(item, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			continue
		}
		out[from] = to
	}
	if len(out) == 0 {
		return def
	}
	return out
}
