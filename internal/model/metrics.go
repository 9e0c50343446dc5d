package model

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector receives bridge lifecycle events.
type MetricsCollector interface {
	// WorkerSpawned records a successfully launched worker.
	WorkerSpawned()
	// LockWait records how long a caller queued for the worker.
	LockWait(d time.Duration)
	// CycleCompleted records a successful round trip and the number of ids returned.
	CycleCompleted(d time.Duration, results int)
	// CycleFailed records a failed round trip.
	CycleFailed(d time.Duration, kind Kind)
}

type noopMetricsCollector struct{}

func (noopMetricsCollector) WorkerSpawned()                              {}
func (noopMetricsCollector) LockWait(d time.Duration)                    {}
func (noopMetricsCollector) CycleCompleted(d time.Duration, results int) {}
func (noopMetricsCollector) CycleFailed(d time.Duration, kind Kind)      {}

// NewNoopMetricsCollector creates a collector that discards everything.
func NewNoopMetricsCollector() MetricsCollector {
	return noopMetricsCollector{}
}

// PrometheusMetrics implements MetricsCollector with Prometheus metrics.
type PrometheusMetrics struct {
	spawns        prometheus.Counter
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	lockWait      prometheus.Histogram
	results       prometheus.Histogram
}

// NewPrometheusMetrics creates the bridge metrics and registers them with reg.
func NewPrometheusMetrics(namespace string, reg prometheus.Registerer) *PrometheusMetrics {
	if namespace == "" {
		namespace = "dineright"
	}

	m := &PrometheusMetrics{
		spawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "worker_spawns_total",
			Help:      "Total number of recommendation worker processes launched",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "cycles_total",
			Help:      "Total number of request/response cycles by outcome",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of request/response cycles, spawn included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "lock_wait_seconds",
			Help:      "Time callers spent queued for the worker",
			Buckets:   prometheus.DefBuckets,
		}),
		results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "results_returned",
			Help:      "Number of restaurant ids returned per successful cycle",
			Buckets:   []float64{0, 1, 5, 10, 20, 50},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.spawns, m.cycles, m.cycleDuration, m.lockWait, m.results)
	}
	return m
}

func (m *PrometheusMetrics) WorkerSpawned() {
	m.spawns.Inc()
}

func (m *PrometheusMetrics) LockWait(d time.Duration) {
	m.lockWait.Observe(d.Seconds())
}

func (m *PrometheusMetrics) CycleCompleted(d time.Duration, results int) {
	m.cycles.WithLabelValues("success").Inc()
	m.cycleDuration.WithLabelValues("success").Observe(d.Seconds())
	m.results.Observe(float64(results))
}

func (m *PrometheusMetrics) CycleFailed(d time.Duration, kind Kind) {
	m.cycles.WithLabelValues(kind.String()).Inc()
	m.cycleDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}
