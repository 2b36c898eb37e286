package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allEnvVars = []string{
	"CONFIG_FILE",
	"SERVICE_PRINCIPAL", "GRPC_PORT", "HTTP_ADDR", "METRICS_ADDR",
	"MEETING_ID", "MEETING_SPEAKER_ALIASES",
	"ENGINE_BUFFER_WINDOW", "ENGINE_CONSOLIDATION_INTERVAL", "ENGINE_NOTIFICATION_THROTTLE", "ENGINE_AUTO_START",
	"SOURCE_KIND",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_CAPTIONS", "KAFKA_GROUP_ID",
	"KAFKA_TOPIC_TRANSCRIPT", "KAFKA_TOPIC_STATUS", "KAFKA_PRINCIPAL",
	"STORAGE_KIND", "STORAGE_PATH", "STORAGE_POSTGRES_DSN",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every variable Load reads and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range allEnvVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func mustLoad(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := mustLoad(t)

	// Service defaults
	if cfg.Service.Principal != "svc-sonara-transcriber" {
		t.Errorf("expected default principal 'svc-sonara-transcriber', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Service.HTTPAddr != ":8080" || cfg.Service.MetricsAddr != ":9090" {
		t.Errorf("unexpected listen addresses %q %q", cfg.Service.HTTPAddr, cfg.Service.MetricsAddr)
	}

	// Engine timing contracts
	if cfg.Engine.BufferWindow != 3*time.Second {
		t.Errorf("expected buffer window 3s, got %v", cfg.Engine.BufferWindow)
	}
	if cfg.Engine.ConsolidationInterval != 8*time.Second {
		t.Errorf("expected consolidation interval 8s, got %v", cfg.Engine.ConsolidationInterval)
	}
	if cfg.Engine.NotificationThrottle != 2*time.Second {
		t.Errorf("expected throttle 2s, got %v", cfg.Engine.NotificationThrottle)
	}
	if cfg.Engine.AutoStart {
		t.Error("expected auto start off by default")
	}

	if cfg.Meeting.SpeakerAliases["You"] != "You (Me)" {
		t.Errorf("expected default 'You' alias, got %v", cfg.Meeting.SpeakerAliases)
	}
	if cfg.Source.Kind != SourceNone {
		t.Errorf("expected source kind none, got %s", cfg.Source.Kind)
	}
	if cfg.Storage.Kind != StorageNone {
		t.Errorf("expected storage kind none, got %s", cfg.Storage.Kind)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected kafka disabled by default")
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("GRPC_PORT", "9999")
	t.Setenv("MEETING_ID", "abc-defg-hij")
	t.Setenv("MEETING_SPEAKER_ALIASES", "Me=Host, bad, Tu=You (Me)")
	t.Setenv("ENGINE_BUFFER_WINDOW", "1500")
	t.Setenv("ENGINE_CONSOLIDATION_INTERVAL", "10s")
	t.Setenv("ENGINE_AUTO_START", "true")
	t.Setenv("SOURCE_KIND", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("STORAGE_KIND", "file")
	t.Setenv("STORAGE_PATH", "/tmp/meet.json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := mustLoad(t)

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Meeting.ID != "abc-defg-hij" {
		t.Errorf("expected meeting id, got %s", cfg.Meeting.ID)
	}
	if len(cfg.Meeting.SpeakerAliases) != 2 || cfg.Meeting.SpeakerAliases["Me"] != "Host" || cfg.Meeting.SpeakerAliases["Tu"] != "You (Me)" {
		t.Errorf("unexpected aliases %v", cfg.Meeting.SpeakerAliases)
	}
	if cfg.Engine.BufferWindow != 1500*time.Millisecond {
		t.Errorf("expected bare milliseconds to parse, got %v", cfg.Engine.BufferWindow)
	}
	if cfg.Engine.ConsolidationInterval != 10*time.Second {
		t.Errorf("expected 10s, got %v", cfg.Engine.ConsolidationInterval)
	}
	if !cfg.Engine.AutoStart {
		t.Error("expected auto start")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Storage.Kind != StorageFile || cfg.Storage.Path != "/tmp/meet.json" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_BUFFER_WINDOW", "invalid")
	t.Setenv("ENGINE_AUTO_START", "invalid")
	t.Setenv("KAFKA_BROKERS", " , ")
	t.Setenv("MEETING_SPEAKER_ALIASES", "no-equals-sign")

	cfg := mustLoad(t)

	// Should fall back to defaults on parse errors
	if cfg.Engine.BufferWindow != 3*time.Second {
		t.Errorf("expected default buffer window on invalid input, got %v", cfg.Engine.BufferWindow)
	}
	if cfg.Engine.AutoStart {
		t.Error("expected default auto start on invalid input")
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("expected default brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Meeting.SpeakerAliases["You"] != "You (Me)" {
		t.Errorf("expected default aliases, got %v", cfg.Meeting.SpeakerAliases)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVICE_PRINCIPAL", "my-service")

	cfg := mustLoad(t)

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestLoad_ConfigFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sonara.yaml")
	content := `
service:
  grpcPort: "6000"
engine:
  bufferWindow: 4s
storage:
  kind: postgres
  postgresDsn: postgres://localhost/sonara
observability:
  logFormat: console
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GRPC_PORT", "7000")

	cfg := mustLoad(t)

	if cfg.Service.GRPCPort != "7000" {
		t.Errorf("expected env to override file, got %s", cfg.Service.GRPCPort)
	}
	if cfg.Engine.BufferWindow != 4*time.Second {
		t.Errorf("expected file buffer window, got %v", cfg.Engine.BufferWindow)
	}
	if cfg.Engine.ConsolidationInterval != 8*time.Second {
		t.Errorf("expected untouched default, got %v", cfg.Engine.ConsolidationInterval)
	}
	if cfg.Storage.Kind != StoragePostgres || cfg.Storage.PostgresDSN == "" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Observability.LogFormat != "console" {
		t.Errorf("expected console format, got %s", cfg.Observability.LogFormat)
	}
}

func TestLoad_ConfigFileUnknownField(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sonara.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  bufferWindw: 4s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_ConfigFileMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero buffer window", func(c *Config) { c.Engine.BufferWindow = 0 }, "BufferWindow"},
		{"unknown source", func(c *Config) { c.Source.Kind = "browser" }, "Kind"},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "LogLevel"},
		{"kafka source without brokers", func(c *Config) {
			c.Source.Kind = SourceKafka
			c.Kafka.Brokers = nil
		}, "brokers required"},
		{"postgres without dsn", func(c *Config) { c.Storage.Kind = StoragePostgres }, "postgres DSN"},
		{"file without path", func(c *Config) {
			c.Storage.Kind = StorageFile
			c.Storage.Path = ""
		}, "path required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			t.Setenv(key, tt.envValue)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultDuration(t *testing.T) {
	tests := []struct {
		envValue string
		expected time.Duration
	}{
		{"2s", 2 * time.Second},
		{"750ms", 750 * time.Millisecond},
		{"250", 250 * time.Millisecond},
		{"-5", time.Minute},
		{"soon", time.Minute},
		{"", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("TEST_DURATION_VAR", tt.envValue)
			if got := envOrDefaultDuration("TEST_DURATION_VAR", time.Minute); got != tt.expected {
				t.Errorf("envOrDefaultDuration(%q) = %v, want %v", tt.envValue, got, tt.expected)
			}
		})
	}
}
