// Package metrics exposes the watcher's Prometheus metrics. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "burnwatch"

// Metrics holds the collectors for every stream of one process.
type Metrics struct {
	registry *prometheus.Registry

	frames       *prometheus.CounterVec
	drops        *prometheus.CounterVec
	instructions *prometheus.CounterVec
	reports      *prometheus.CounterVec
	aggregation  *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	reconnects   *prometheus.CounterVec
	connState    *prometheus.GaugeVec
	queueDepth   *prometheus.GaugeVec
}

// New creates a Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Frames received from the transaction stream.",
		}, []string{"stream"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "dropped_total",
			Help:      "Frames or instructions discarded by the filter.",
		}, []string{"stream", "reason"}),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "instructions_total",
			Help:      "Decoded program instructions by kind.",
		}, []string{"stream", "kind"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "built_total",
			Help:      "Reports built.",
		}, []string{"stream", "kind"}),
		aggregation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "aggregation_duration_seconds",
			Help:      "Time spent reading accounts to build a report.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"stream"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "failures_total",
			Help:      "Instructions whose report could not be built.",
		}, []string{"stream"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Report deliveries by outcome.",
		}, []string{"stream", "outcome"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Reconnects scheduled after the stream closed.",
		}, []string{"stream"}),
		connState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "Connection state: 0 disconnected, 1 connecting, 2 subscribed.",
		}, []string{"stream"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Instructions waiting for a worker.",
		}, []string{"stream"}),
	}
	m.registry.MustRegister(
		m.frames, m.drops, m.instructions,
		m.reports, m.aggregation, m.failures,
		m.deliveries, m.reconnects, m.connState, m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Frame(stream string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(stream).Inc()
}

func (m *Metrics) Drop(stream, reason string) {
	if m == nil {
		return
	}
	m.drops.WithLabelValues(stream, reason).Inc()
}

func (m *Metrics) Instruction(stream, kind string) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(stream, kind).Inc()
}

// Aggregated records one aggregation attempt and how long it took.
func (m *Metrics) Aggregated(stream, kind string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.aggregation.WithLabelValues(stream).Observe(took.Seconds())
	if err != nil {
		m.failures.WithLabelValues(stream).Inc()
		return
	}
	m.reports.WithLabelValues(stream, kind).Inc()
}

// Delivered adds the outcome counts of one dispatch.
func (m *Metrics) Delivered(stream string, delivered, failed, skipped int) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(stream, "delivered").Add(float64(delivered))
	m.deliveries.WithLabelValues(stream, "failed").Add(float64(failed))
	m.deliveries.WithLabelValues(stream, "skipped").Add(float64(skipped))
}

func (m *Metrics) Reconnect(stream string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(stream).Inc()
}

func (m *Metrics) State(stream string, state int) {
	if m == nil {
		return
	}
	m.connState.WithLabelValues(stream).Set(float64(state))
}

func (m *Metrics) QueueDepth(stream string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(stream).Set(float64(depth))
}
