package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"rask-log-stack/internal/aggregator/cleaner"
	"rask-log-stack/internal/aggregator/config"
	"rask-log-stack/internal/aggregator/intake"
	"rask-log-stack/internal/aggregator/metrics"
	"rask-log-stack/internal/aggregator/sink"
	"rask-log-stack/internal/aggregator/writer"
	"rask-log-stack/pkg/tracing"
)

// App is the aggregator's composition root: it owns the writer, the sink,
// the fallback cleaner, and the two HTTP listeners spec.md §2 describes as
// "distinct main and OTLP listeners" — the legacy/health/metrics surface on
// HTTPPort, and the OTLP logs/traces surface on OTLPPort.
type App struct {
	cfg        *config.Config
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	metricsReg *prometheus.Registry

	writer  *writer.Writer
	cleaner *cleaner.Cleaner
	tracing *tracing.Manager
}

// NewLogger builds the shared *logrus.Logger per cfg.LogFormat/LogLevel.
func NewLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.LogFormat == "plain" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// New wires the sink, writer, and cleaner together per cfg.
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	m, reg := metrics.New()

	fallbackSink, err := sink.NewJSONFileSink(cfg.JSONFallbackDir)
	if err != nil {
		return nil, fmt.Errorf("init json fallback sink: %w", err)
	}

	var columnar sink.ColumnarSink = fallbackSink
	if cfg.SinkKind == config.SinkElasticsearch {
		esSink, err := sink.NewElasticsearchSink(sink.ElasticsearchConfig{
			Addresses:   cfg.SinkAddresses,
			Username:    cfg.SinkUsername,
			Password:    cfg.SinkPassword,
			IndexPrefix: cfg.SinkIndexPrefix,
			Timeout:     cfg.SinkTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch sink: %w", err)
		}
		columnar = &sink.FallbackSink{
			Primary:  esSink,
			Fallback: fallbackSink,
			Logger:   logger,
			OnFallback: func(table string) {
				m.FallbackWritesTotal.Inc()
			},
		}
	}

	tracingCfg := tracing.Default("rask-aggregator")
	tracingCfg.Enabled = cfg.TracingEnabled
	tracingCfg.Exporter = tracing.Exporter(cfg.TracingExporter)
	tracingCfg.Endpoint = cfg.TracingEndpoint
	tracingCfg.SampleRate = cfg.TracingSampleRate
	tm, err := tracing.New(tracingCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	w := writer.New(writer.Config{
		ChannelCapacity: cfg.WriterChannelCapacity,
		Tracer:          tm.Tracer(),
		Logs: writer.SessionLimits{
			MaxRows:       cfg.WriterMaxRows,
			MaxBytes:      cfg.WriterMaxBytes,
			FlushInterval: cfg.WriterFlushInterval,
			SendTimeout:   cfg.WriterSendTimeout,
		},
		OTelLogs: writer.SessionLimits{
			MaxRows:       cfg.WriterMaxRows,
			MaxBytes:      cfg.WriterMaxBytes,
			FlushInterval: cfg.WriterFlushInterval,
			SendTimeout:   cfg.WriterSendTimeout,
		},
		OTelTraces: writer.SessionLimits{
			MaxRows:       cfg.WriterMaxRows,
			MaxBytes:      cfg.WriterMaxBytes,
			FlushInterval: cfg.WriterFlushInterval,
			SendTimeout:   cfg.WriterSendTimeout,
		},
	}, columnar, logger)

	c := &cleaner.Cleaner{
		Dir:           cfg.JSONFallbackDir,
		MaxTotalBytes: cfg.FallbackMaxBytes,
		Interval:      cfg.FallbackSweepEvery,
		Logger:        logger,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		metricsReg: reg,
		writer:     w,
		cleaner:    c,
		tracing:    tm,
	}, nil
}

// Run starts the writer, cleaner, and both HTTP listeners, and blocks until
// ctx is canceled, draining the writer's sessions before returning
// (spec.md §5's shutdown sequence).
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.writer.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.cleaner.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sampleWriterState(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.runMainListener(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.runOTLPListener(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracing.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("tracing shutdown failed")
	}
	return nil
}

func (a *App) sampleWriterState(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	tables := []string{"logs", "otel_logs", "otel_traces"}
	stateValue := map[writer.State]float64{
		writer.StateIdle:         0,
		writer.StateAccumulating: 1,
		writer.StateFlushing:     2,
		writer.StateFatalFailed:  3,
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, table := range tables {
				a.metrics.WriterStateGauge.WithLabelValues(table).Set(stateValue[a.writer.State(table)])
			}
		}
	}
}

func (a *App) runMainListener(ctx context.Context) {
	router := mux.NewRouter()
	router.HandleFunc("/v1/health", HealthHandler).Methods(http.MethodGet)
	router.Handle(a.cfg.MetricsPath, metrics.Handler(a.metricsReg)).Methods(http.MethodGet)
	router.Handle("/v1/aggregate", &intake.LegacyHandler{Writer: a.writer, Logger: a.logger}).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler: router,
	}
	runAndShutdown(ctx, srv, a.logger, "main listener")
}

func (a *App) runOTLPListener(ctx context.Context) {
	router := mux.NewRouter()
	router.Handle("/v1/logs", &intake.OTLPLogsHandler{Writer: a.writer, Logger: a.logger}).Methods(http.MethodPost)
	router.Handle("/v1/traces", &intake.OTLPTracesHandler{Writer: a.writer, Logger: a.logger}).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.OTLPPort),
		Handler: router,
	}
	runAndShutdown(ctx, srv, a.logger, "otlp listener")
}

func runAndShutdown(ctx context.Context, srv *http.Server, logger *logrus.Logger, name string) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).WithField("listener", name).Error("listener failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
