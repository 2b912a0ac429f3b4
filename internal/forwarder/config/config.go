// Package config loads and validates the forwarder's configuration:
// defaults, then an optional YAML file, then environment overrides —
// environment wins, matching internal/config/config.go's precedence.
// Grounded on that file's LoadConfig/applyDefaults/applyEnvironmentOverrides
// shape, trimmed to the fixed option set spec.md §6 enumerates (the teacher
// config covers a much larger surface — file watching, multiple sinks,
// security — none of which this forwarder has).
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"rask-log-stack/pkg/apperror"
)

// Protocol selects the wire format the sender speaks.
type Protocol string

const (
	ProtocolNDJSON Protocol = "ndjson"
	ProtocolOTLP   Protocol = "otlp"
)

// Config is the forwarder's single validated configuration struct. No
// dynamic key lookup: every field here is a documented option, per the
// "Configuration" design note of spec.md §9.
type Config struct {
	TargetService          string        `yaml:"target_service"`
	Endpoint               string        `yaml:"endpoint"`
	OTLPEndpoint           string        `yaml:"otlp_endpoint"`
	Protocol               Protocol      `yaml:"protocol"`
	BatchSize              int           `yaml:"batch_size"`
	BatchMaxBytes          int           `yaml:"batch_max_bytes"`
	BatchMaxWait           time.Duration `yaml:"batch_max_wait"`
	BufferCapacity         int           `yaml:"buffer_capacity"`
	ConnectionTimeout      time.Duration `yaml:"connection_timeout"`
	RetryMaxAttempts       int           `yaml:"retry_max_attempts"`
	RetryBaseDelay         time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay          time.Duration `yaml:"retry_max_delay"`
	DiskFallbackPath       string        `yaml:"disk_fallback_path"`
	DiskFallbackMaxBytes   int64         `yaml:"disk_fallback_max_bytes"`
	MaxMemoryBytes         int64         `yaml:"max_memory_bytes"`
	MemoryWarningFraction  float64       `yaml:"memory_warning_fraction"`
	MemoryCriticalFraction float64       `yaml:"memory_critical_fraction"`
	MetricsPort            int           `yaml:"metrics_port"`
	MetricsPath            string        `yaml:"metrics_path"`
	LogFormat              string        `yaml:"log_format"`
	LogLevel               string        `yaml:"log_level"`

	TracingEnabled    bool    `yaml:"tracing_enabled"`
	TracingExporter   string  `yaml:"tracing_exporter"`
	TracingEndpoint   string  `yaml:"tracing_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`
}

// Default returns the configuration with every field at its documented
// default, before any file or environment overrides are applied.
func Default() Config {
	return Config{
		Endpoint:               "http://localhost:8686/v1/aggregate",
		OTLPEndpoint:           "http://localhost:8687",
		Protocol:               ProtocolNDJSON,
		BatchSize:              500,
		BatchMaxBytes:          1 << 20,
		BatchMaxWait:           5 * time.Second,
		BufferCapacity:         10000,
		ConnectionTimeout:      10 * time.Second,
		RetryMaxAttempts:       5,
		RetryBaseDelay:         100 * time.Millisecond,
		RetryMaxDelay:          30 * time.Second,
		DiskFallbackMaxBytes:   1 << 30,
		MaxMemoryBytes:         256 << 20,
		MemoryWarningFraction:  0.5,
		MemoryCriticalFraction: 0.9,
		MetricsPort:            9090,
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
// environment overrides, and validates the result. A non-empty configPath
// that fails to parse is a fatal configuration error, not a warning — the
// forwarder has no sibling subsystem to fall back to the way the teacher's
// many-sink daemon does.
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
	if v := os.Getenv("TARGET_SERVICE"); v != "" {
		cfg.TargetService = v
	}
	if v := os.Getenv("ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("PROTOCOL"); v != "" {
		cfg.Protocol = Protocol(v)
	}
	if v, ok := envInt("BATCH_SIZE"); ok {
		cfg.BatchSize = v
	}
	if v, ok := envInt("BUFFER_CAPACITY"); ok {
		cfg.BufferCapacity = v
	}
	if v, ok := envSeconds("CONNECTION_TIMEOUT_SECS"); ok {
		cfg.ConnectionTimeout = v
	}
	if v, ok := envInt("RETRY_MAX_ATTEMPTS"); ok {
		cfg.RetryMaxAttempts = v
	}
	if v := os.Getenv("DISK_FALLBACK_PATH"); v != "" {
		cfg.DiskFallbackPath = v
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

func envSeconds(name string) (time.Duration, bool) {
	v, ok := envInt(name)
	if !ok {
		return 0, false
	}
	return time.Duration(v) * time.Second, true
}

// Validate applies the checks spec.md §6 enumerates. Every violation is
// collected so a single run reports everything wrong at once, mirroring
// ConfigValidator.Validate's accumulate-then-report shape in
// internal/config/config.go.
func Validate(cfg *Config) error {
	v := &validator{}

	if cfg.Protocol != ProtocolNDJSON && cfg.Protocol != ProtocolOTLP {
		v.addf("protocol must be %q or %q, got %q", ProtocolNDJSON, ProtocolOTLP, cfg.Protocol)
	}
	if cfg.BatchSize <= 0 {
		v.addf("batch_size must be > 0")
	}
	if cfg.BufferCapacity < cfg.BatchSize {
		v.addf("buffer_capacity (%d) must be >= batch_size (%d)", cfg.BufferCapacity, cfg.BatchSize)
	}
	if cfg.ConnectionTimeout <= 0 {
		v.addf("connection_timeout must be > 0")
	}
	if cfg.RetryMaxAttempts <= 0 {
		v.addf("retry_max_attempts must be > 0")
	}
	if cfg.DiskFallbackPath != "" {
		parent := parentDir(cfg.DiskFallbackPath)
		if _, err := os.Stat(parent); err != nil {
			v.addf("disk_fallback_path parent %q must exist: %v", parent, err)
		}
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

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}
