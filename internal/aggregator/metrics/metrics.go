// Package metrics defines the aggregator's Prometheus metrics, grounded on
// the same promauto/registry convention as internal/forwarder/metrics and
// the teacher's internal/metrics/metrics.go, sized to the aggregator's
// intake/writer/sink surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge/histogram the aggregator exposes.
type Metrics struct {
	IntakeRequestsTotal  *prometheus.CounterVec
	IntakeRowsTotal      *prometheus.CounterVec
	SinkWritesTotal      *prometheus.CounterVec
	SinkWriteErrorsTotal *prometheus.CounterVec
	SinkWriteLatency     *prometheus.HistogramVec
	FallbackWritesTotal  prometheus.Counter
	WriterStateGauge     *prometheus.GaugeVec
	HealthCheckTotal     *prometheus.CounterVec
}

// New registers the aggregator's metrics against a fresh registry.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		IntakeRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rask_aggregator_intake_requests_total",
			Help: "Total number of intake requests, labeled by endpoint and result.",
		}, []string{"endpoint", "result"}),
		IntakeRowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rask_aggregator_intake_rows_total",
			Help: "Total number of rows accepted by intake, labeled by table.",
		}, []string{"table"}),
		SinkWritesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rask_aggregator_sink_writes_total",
			Help: "Total number of successful sink flush calls, labeled by table.",
		}, []string{"table"}),
		SinkWriteErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rask_aggregator_sink_write_errors_total",
			Help: "Total number of failed sink flush calls, labeled by table.",
		}, []string{"table"}),
		SinkWriteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rask_aggregator_sink_write_latency_seconds",
			Help:    "Latency of sink flush calls, labeled by table.",
			Buckets: prometheus.DefBuckets,
		}, []string{"table"}),
		FallbackWritesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rask_aggregator_fallback_writes_total",
			Help: "Total number of flushes written to the JSON fallback sink.",
		}),
		WriterStateGauge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rask_aggregator_writer_state",
			Help: "Current writer session state per table: 0=idle, 1=accumulating, 2=flushing, 3=fatal_failed.",
		}, []string{"table"}),
		HealthCheckTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rask_aggregator_healthcheck_total",
			Help: "Total number of healthcheck probes, labeled by result.",
		}, []string{"result"}),
	}, reg
}

// Handler returns the HTTP handler exposing reg in Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
