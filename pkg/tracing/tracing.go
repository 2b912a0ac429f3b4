// Package tracing provides the self-observability tracing manager both
// binaries optionally use to emit their own spans (a request handled, a
// batch flushed) — distinct from the aggregator's OTLP *ingestion* path in
// internal/aggregator/intake, which decodes traces other services send.
// Grounded on pkg/tracing/tracing.go in the teacher, trimmed to the
// exporter/resource/span-helper surface this repository's two binaries
// actually call; the teacher's HTTP middleware, TraceableLogEntry wire
// type, and InstrumentedFunction wrapper belonged to its own dispatcher
// and log-entry shapes and have no equivalent here. The teacher's
// `go.opentelemetry.io/otel/semconv/v1.21.0` import is dropped — it is not
// among this module's dependencies — in favor of building the handful of
// resource attributes this package needs directly via attribute.String.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Exporter selects which span exporter (OTLP/HTTP or Jaeger) backs the
// tracer provider.
type Exporter string

const (
	ExporterOTLP   Exporter = "otlp"
	ExporterJaeger Exporter = "jaeger"
)

// Config configures the tracing manager. Disabled by default: most
// deployments of this stack run without a trace collector present.
type Config struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	Exporter     Exporter
	Endpoint     string
	SampleRate   float64
	BatchTimeout time.Duration
}

// Default returns a disabled tracing configuration.
func Default(serviceName string) Config {
	return Config{
		Enabled:      false,
		ServiceName:  serviceName,
		Environment:  "production",
		Exporter:     ExporterOTLP,
		Endpoint:     "http://localhost:4318/v1/traces",
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
	}
}

// Manager owns the tracer provider and exposes the tracer components use to
// start spans. When tracing is disabled, Tracer returns a no-op tracer and
// Shutdown is a no-op.
type Manager struct {
	cfg      Config
	logger   *logrus.Logger
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// New builds a Manager from cfg. A disabled config returns immediately with
// a no-op tracer; an enabled one builds the exporter, resource, and
// tracer provider, and registers them as process globals, matching the
// teacher's NewTracingManager.
func New(cfg Config, logger *logrus.Logger) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{cfg: cfg, logger: logger, tracer: otel.Tracer("noop")}, nil
	}

	m := &Manager{cfg: cfg, logger: logger}
	if err := m.initialize(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initialize() error {
	exporter, err := m.createExporter()
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", m.cfg.ServiceName),
		attribute.String("deployment.environment", m.cfg.Environment),
	)

	m.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(m.cfg.BatchTimeout)),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(m.cfg.SampleRate)),
	)

	otel.SetTracerProvider(m.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	m.tracer = otel.Tracer(m.cfg.ServiceName)

	m.logger.WithFields(logrus.Fields{
		"service_name": m.cfg.ServiceName,
		"exporter":     m.cfg.Exporter,
		"endpoint":     m.cfg.Endpoint,
		"sample_rate":  m.cfg.SampleRate,
	}).Info("distributed tracing initialized")
	return nil
}

func (m *Manager) createExporter() (trace.SpanExporter, error) {
	switch m.cfg.Exporter {
	case ExporterJaeger:
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(m.cfg.Endpoint)))
	case ExporterOTLP:
		return otlptrace.New(context.Background(), otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(m.cfg.Endpoint),
		))
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", m.cfg.Exporter)
	}
}

// Tracer returns the manager's tracer, a no-op one when tracing is disabled.
func (m *Manager) Tracer() oteltrace.Tracer {
	return m.tracer
}

// StartSpan starts a span named operation as a convenience over
// Tracer().Start, for the common case of not needing span options.
func (m *Manager) StartSpan(ctx context.Context, operation string) (context.Context, oteltrace.Span) {
	return m.tracer.Start(ctx, operation)
}

// Shutdown flushes and stops the tracer provider, a no-op when tracing was
// never enabled.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
