// Package metrics defines the forwarder's Prometheus metrics, exposed over
// HTTP per spec.md §6. Grounded on the promauto-registered counter/gauge/
// histogram convention of internal/metrics/metrics.go, trimmed to the
// metric names spec.md §6 enumerates rather than that file's much broader
// file/container/sink surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge/histogram the forwarder exposes.
type Metrics struct {
	BatchesSentTotal      prometheus.Counter
	EntriesSentTotal      prometheus.Counter
	TransmissionLatency   prometheus.Histogram
	ConnectionsInUse      prometheus.Gauge
	HealthCheckTotal      *prometheus.CounterVec
	RetriesTotal          prometheus.Counter
	DiskFallbackTotal     prometheus.Counter
	PressureLevel         prometheus.Gauge
	ParseErrorsTotal      *prometheus.CounterVec
	QueueDepth            prometheus.Gauge
	QueueDroppedTotal     prometheus.Counter
	BatchesLostTotal      *prometheus.CounterVec
	HostMemoryUsedPercent prometheus.Gauge
}

// New registers the forwarder's metrics against a fresh registry, so
// multiple Metrics instances (e.g. one per test) never collide on the
// global default registry.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		BatchesSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rask_forwarder_batches_sent_total",
			Help: "Total number of batches successfully transmitted.",
		}),
		EntriesSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rask_forwarder_entries_sent_total",
			Help: "Total number of log entries successfully transmitted.",
		}),
		TransmissionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rask_forwarder_transmission_latency_seconds",
			Help:    "Latency of batch transmission attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		ConnectionsInUse: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rask_forwarder_connections_in_use",
			Help: "Number of HTTP connections currently in use by the sender's pool.",
		}),
		HealthCheckTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rask_forwarder_healthcheck_total",
			Help: "Total number of healthcheck probes, labeled by result.",
		}, []string{"result"}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rask_forwarder_retries_total",
			Help: "Total number of batch transmission retries.",
		}),
		DiskFallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rask_forwarder_disk_fallback_total",
			Help: "Total number of batches spilled to disk after exhausting retries.",
		}),
		PressureLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rask_forwarder_memory_pressure_level",
			Help: "Current memory pressure level: 0=none, 1=warning, 2=critical.",
		}),
		ParseErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rask_forwarder_parse_errors_total",
			Help: "Total number of frames dropped due to a parse error, labeled by kind.",
		}, []string{"kind"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rask_forwarder_queue_depth",
			Help: "Current number of entries in the bounded queue.",
		}),
		QueueDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rask_forwarder_queue_dropped_total",
			Help: "Total number of entries dropped before entering the bounded queue, because it was full or memory pressure was critical.",
		}),
		BatchesLostTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rask_forwarder_batches_lost_total",
			Help: "Total number of batches abandoned without transmission, labeled by reason.",
		}, []string{"reason"}),
		HostMemoryUsedPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rask_forwarder_host_memory_used_percent",
			Help: "Host memory utilization percentage, sampled via gopsutil.",
		}),
	}, reg
}

// Handler returns the HTTP handler that exposes reg in Prometheus text
// exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
