// Package config loads and validates the aggregator's configuration, with
// the same defaults-then-YAML-then-environment precedence as
// internal/forwarder/config, sized to the aggregator's own option set
// (listener ports, sink selection, writer session limits) rather than the
// forwarder's.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"rask-log-stack/pkg/apperror"
)

// SinkKind selects which ColumnarSink implementation the aggregator writes
// through.
type SinkKind string

const (
	SinkElasticsearch SinkKind = "elasticsearch"
	SinkJSONFile      SinkKind = "jsonfile"
)

// Config is the aggregator's single validated configuration struct.
type Config struct {
	HTTPPort  int `yaml:"http_port"`
	OTLPPort  int `yaml:"otlp_port"`

	SinkKind          SinkKind      `yaml:"sink_kind"`
	SinkAddresses     []string      `yaml:"sink_addresses"`
	SinkUsername      string        `yaml:"sink_username"`
	SinkPassword      string        `yaml:"sink_password"`
	SinkIndexPrefix   string        `yaml:"sink_index_prefix"`
	SinkTimeout       time.Duration `yaml:"sink_timeout"`
	JSONFallbackDir   string        `yaml:"json_fallback_dir"`
	FallbackMaxBytes  int64         `yaml:"fallback_max_bytes"`
	FallbackSweepEvery time.Duration `yaml:"fallback_sweep_interval"`

	WriterChannelCapacity int           `yaml:"writer_channel_capacity"`
	WriterMaxRows         int           `yaml:"writer_max_rows"`
	WriterMaxBytes        int           `yaml:"writer_max_bytes"`
	WriterFlushInterval   time.Duration `yaml:"writer_flush_interval"`
	WriterSendTimeout     time.Duration `yaml:"writer_send_timeout"`

	MetricsPort int    `yaml:"metrics_port"`
	MetricsPath string `yaml:"metrics_path"`
	LogFormat   string `yaml:"log_format"`
	LogLevel    string `yaml:"log_level"`

	TracingEnabled    bool    `yaml:"tracing_enabled"`
	TracingExporter   string  `yaml:"tracing_exporter"`
	TracingEndpoint   string  `yaml:"tracing_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`
}

// Default returns the aggregator's configuration with every field at its
// documented default.
func Default() Config {
	return Config{
		HTTPPort:              8686,
		OTLPPort:               8687,
		SinkKind:               SinkJSONFile,
		SinkIndexPrefix:        "rask",
		SinkTimeout:            10 * time.Second,
		JSONFallbackDir:        "/var/lib/rask-aggregator/fallback",
		FallbackMaxBytes:       1 << 30,
		FallbackSweepEvery:     time.Minute,
		WriterChannelCapacity:  1024,
		WriterMaxRows:          500,
		WriterMaxBytes:         1 << 20,
		WriterFlushInterval:    5 * time.Second,
		WriterSendTimeout:      10 * time.Second,
		MetricsPort:            9091,
		MetricsPath:            "/metrics",
		LogFormat:              "json",
		LogLevel:               "info",

		TracingEnabled:    false,
		TracingExporter:   "otlp",
		TracingEndpoint:   "http://localhost:4318/v1/traces",
		TracingSampleRate: 1.0,
	}
}

// Load builds a Config from defaults, an optional YAML file, then
// environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, apperror.Wrap(apperror.CodeConfigInvalid, "config", "read_file", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, apperror.Wrap(apperror.CodeConfigInvalid, "config", "parse_file", err)
		}
	}

	applyEnvironmentOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	if v, ok := envInt("AGG_HTTP_PORT"); ok {
		cfg.HTTPPort = v
	}
	if v, ok := envInt("AGG_OTLP_PORT"); ok {
		cfg.OTLPPort = v
	}
	if v := os.Getenv("AGG_SINK_KIND"); v != "" {
		cfg.SinkKind = SinkKind(v)
	}
	if v := os.Getenv("AGG_SINK_ADDRESSES"); v != "" {
		cfg.SinkAddresses = splitCSV(v)
	}
	if v := os.Getenv("AGG_SINK_USERNAME"); v != "" {
		cfg.SinkUsername = v
	}
	if v := os.Getenv("AGG_SINK_PASSWORD"); v != "" {
		cfg.SinkPassword = v
	}
	if v := os.Getenv("AGG_SINK_INDEX_PREFIX"); v != "" {
		cfg.SinkIndexPrefix = v
	}
	if v := os.Getenv("AGG_JSON_FALLBACK_DIR"); v != "" {
		cfg.JSONFallbackDir = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		cfg.TracingEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TRACING_EXPORTER"); v != "" {
		cfg.TracingExporter = v
	}
	if v := os.Getenv("TRACING_ENDPOINT"); v != "" {
		cfg.TracingEndpoint = v
	}
}

func splitCSV(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate applies the aggregator's configuration checks, accumulating every
// violation before returning, matching internal/forwarder/config's pattern.
func Validate(cfg *Config) error {
	v := &validator{}

	if cfg.HTTPPort <= 0 {
		v.addf("http_port must be > 0")
	}
	if cfg.OTLPPort <= 0 {
		v.addf("otlp_port must be > 0")
	}
	if cfg.HTTPPort == cfg.OTLPPort {
		v.addf("http_port and otlp_port must differ, both are %d", cfg.HTTPPort)
	}
	if cfg.SinkKind != SinkElasticsearch && cfg.SinkKind != SinkJSONFile {
		v.addf("sink_kind must be %q or %q, got %q", SinkElasticsearch, SinkJSONFile, cfg.SinkKind)
	}
	if cfg.SinkKind == SinkElasticsearch && len(cfg.SinkAddresses) == 0 {
		v.addf("sink_addresses must be set when sink_kind is %q", SinkElasticsearch)
	}
	if cfg.JSONFallbackDir == "" {
		v.addf("json_fallback_dir must not be empty")
	}
	if cfg.WriterChannelCapacity <= 0 {
		v.addf("writer_channel_capacity must be > 0")
	}
	if !validLogLevel(cfg.LogLevel) {
		v.addf("log_level %q is not one of error|warn|info|debug|trace", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "plain" {
		v.addf("log_format %q is not one of json|plain", cfg.LogFormat)
	}

	return v.result()
}

func validLogLevel(level string) bool {
	switch level {
	case "error", "warn", "info", "debug", "trace":
		return true
	default:
		return false
	}
}
