// Package metrics exposes the engine's Prometheus instrumentation: node
// execution counts and durations, plus cycle iteration counters. The
// collector registry is isolated per engine instance so embedding
// applications can mount it wherever they expose metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	nodesTotal      *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
	cycleIterations *prometheus.CounterVec
	cycleOutcomes   *prometheus.CounterVec
}

// New creates an isolated collector set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgrid",
			Name:      "nodes_total",
			Help:      "Node executions by runner type and status.",
		}, []string{"runner_type", "status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowgrid",
			Name:      "node_duration_seconds",
			Help:      "Wall-clock duration of node executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"runner_type"}),
		cycleIterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgrid",
			Name:      "cycle_iterations_total",
			Help:      "Completed cycle iterations by cycle id.",
		}, []string{"cycle_id"}),
		cycleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgrid",
			Name:      "cycle_outcomes_total",
			Help:      "Terminal cycle states by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.nodesTotal, m.nodeDuration, m.cycleIterations, m.cycleOutcomes)
	return m
}

// Registry returns the underlying Prometheus registry for embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveNode records one node execution.
func (m *Metrics) ObserveNode(runnerType, status string, d time.Duration) {
	m.nodesTotal.WithLabelValues(runnerType, status).Inc()
	m.nodeDuration.WithLabelValues(runnerType).Observe(d.Seconds())
}

// AddIterations records completed iterations for a cycle.
func (m *Metrics) AddIterations(cycleID string, n int) {
	m.cycleIterations.WithLabelValues(cycleID).Add(float64(n))
}

// ObserveCycleOutcome records a cycle's terminal state.
func (m *Metrics) ObserveCycleOutcome(outcome string) {
	m.cycleOutcomes.WithLabelValues(outcome).Inc()
}
