package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/docker/docker/client"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"rask-log-stack/internal/forwarder/batch"
	"rask-log-stack/internal/forwarder/config"
	"rask-log-stack/internal/forwarder/discovery"
	"rask-log-stack/internal/forwarder/enrich"
	"rask-log-stack/internal/forwarder/memctl"
	"rask-log-stack/internal/forwarder/metrics"
	"rask-log-stack/internal/forwarder/parser"
	"rask-log-stack/internal/forwarder/queue"
	"rask-log-stack/internal/forwarder/reader"
	"rask-log-stack/internal/forwarder/sender"
	"rask-log-stack/internal/forwarder/spill"
	"rask-log-stack/pkg/logentry"
	"rask-log-stack/pkg/tracing"
)

// App is the forwarder's composition root: it owns every long-running
// component and the HTTP servers (health, metrics), and drives them all
// from Run until ctx is canceled.
type App struct {
	cfg        *config.Config
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	metricsReg *prometheus.Registry

	pipeline *Pipeline
	docker   *client.Client
	tracing  *tracing.Manager
}

// NewLogger builds the shared *logrus.Logger per cfg.LogFormat/LogLevel,
// matching how internal/config.go + cmd/main.go configure logrus in the
// teacher: one logger per process, injected into every component rather
// than referenced through a package global.
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

// New wires every component named in spec.md §4 together: parser registry,
// enricher, bounded queue, memory controller, batch former, sender, and
// (when configured) the disk spill store.
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	registry, err := parser.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("build parser registry: %w", err)
	}

	m, reg := metrics.New()

	q := queue.New(cfg.BufferCapacity)
	mc := memctl.New(cfg.MaxMemoryBytes, cfg.MemoryWarningFraction, cfg.MemoryCriticalFraction)
	former := batch.New(batch.Config{
		MaxEntries:  cfg.BatchSize,
		MaxBytes:    cfg.BatchMaxBytes,
		MaxWaitTime: cfg.BatchMaxWait,
	})

	endpoint := cfg.Endpoint
	format := sender.FormatNDJSON
	if cfg.Protocol == config.ProtocolOTLP {
		endpoint = cfg.OTLPEndpoint
		format = sender.FormatOTLP
	}
	snd := sender.New(sender.Config{
		Endpoint:       endpoint,
		Format:         format,
		RequestTimeout: cfg.ConnectionTimeout,
		Backoff: sender.BackoffConfig{
			Base:        cfg.RetryBaseDelay,
			Max:         cfg.RetryMaxDelay,
			MaxAttempts: cfg.RetryMaxAttempts,
		},
	}, logger)

	var spillStore *spill.Store
	if cfg.DiskFallbackPath != "" {
		spillStore, err = spill.New(cfg.DiskFallbackPath)
		if err != nil {
			return nil, fmt.Errorf("init spill store: %w", err)
		}
	}

	var dockerClient *client.Client
	if cfg.TargetService == "" {
		dockerClient, err = client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("init docker client: %w", err)
		}
	}

	tracingCfg := tracing.Default("rask-forwarder")
	tracingCfg.Enabled = cfg.TracingEnabled
	tracingCfg.Exporter = tracing.Exporter(cfg.TracingExporter)
	tracingCfg.Endpoint = cfg.TracingEndpoint
	tracingCfg.SampleRate = cfg.TracingSampleRate
	tm, err := tracing.New(tracingCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	pipeline := &Pipeline{
		Registry:    registry,
		Enricher:    enrich.New(),
		Queue:       q,
		MemCtl:      mc,
		Former:      former,
		Sender:      snd,
		Spill:       spillStore,
		Metrics:     m,
		Logger:      logger,
		Tracer:      tm.Tracer(),
		MaxAttempts: cfg.RetryMaxAttempts,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		metricsReg: reg,
		docker:     dockerClient,
		pipeline:   pipeline,
		tracing:    tm,
	}, nil
}

// Run starts every background component and blocks until ctx is canceled,
// then drains in-flight work before returning (spec.md §5's shutdown
// sequence).
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	batches := make(chan *logentry.Batch, 64)
	_, receiver := a.pipeline.Queue.Split()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.pipeline.DrainLoop(ctx, receiver, batches)
	}()

	senderWorkers := 4
	for i := 0; i < senderWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.pipeline.SendLoop(ctx, batches)
		}()
	}

	if a.cfg.DiskFallbackPath != "" {
		cleaner := &spill.Cleaner{
			Dir:           a.cfg.DiskFallbackPath,
			MaxTotalBytes: a.cfg.DiskFallbackMaxBytes,
			Interval:      time.Minute,
			Logger:        a.logger,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			cleaner.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sampleHostMemory(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.runHealthAndMetrics(ctx)
	}()

	if a.docker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runDiscovery(ctx)
		}()
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runTargetService(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	close(batches)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracing.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("tracing shutdown failed")
	}
	return nil
}

func (a *App) sampleHostMemory(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := metrics.SampleHostMemory(ctx, a.metrics); err != nil {
				a.logger.WithError(err).Debug("failed to sample host memory")
			}
		}
	}
}

func (a *App) runHealthAndMetrics(ctx context.Context) {
	router := mux.NewRouter()
	router.HandleFunc("/v1/health", HealthHandler).Methods(http.MethodGet)
	router.Handle(a.cfg.MetricsPath, metrics.Handler(a.metricsReg)).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.MetricsPort),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("health/metrics server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// runTargetService attaches to a single named container, bypassing
// discovery entirely, per spec.md §6's TARGET_SERVICE option.
func (a *App) runTargetService(ctx context.Context) {
	meta := logentry.ContainerMetadata{ID: a.cfg.TargetService, Name: a.cfg.TargetService}
	path := fmt.Sprintf("/var/lib/docker/containers/%s/%s-json.log", a.cfg.TargetService, a.cfg.TargetService)
	a.tailContainer(ctx, meta, path)
}

func (a *App) runDiscovery(ctx context.Context) {
	disc := discovery.New(a.docker, a.logger)

	containers, err := disc.List(ctx)
	if err != nil {
		a.logger.WithError(err).Error("initial container discovery failed")
	}
	for _, meta := range containers {
		go a.tailContainer(ctx, meta, containerLogPath(meta.ID))
	}

	events, errs := disc.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Action == "start" {
				go a.tailContainer(ctx, ev.Metadata, containerLogPath(ev.Metadata.ID))
			}
		case err, ok := <-errs:
			if !ok {
				continue
			}
			a.logger.WithError(err).Warn("discovery event stream error")
		}
	}
}

func containerLogPath(containerID string) string {
	return fmt.Sprintf("/var/lib/docker/containers/%s/%s-json.log", containerID, containerID)
}

func (a *App) tailContainer(ctx context.Context, meta logentry.ContainerMetadata, path string) {
	r := reader.New(meta.ID, path, a.logger)
	frames := make(chan logentry.RawFrame, 256)

	go func() {
		if err := r.Run(ctx, frames); err != nil {
			a.logger.WithError(err).WithField("container_id", meta.ID).Warn("container tail ended")
		}
	}()

	hint := meta.Labels[enrich.ServiceTypeLabel]
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			a.pipeline.ProcessFrame(frame, hint, meta)
		}
	}
}
