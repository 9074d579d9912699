// Package metrics defines the prometheus collectors for evaluation runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeCycle   = "cycle"
)

// Metrics groups the evaluation collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Counts evaluation runs, labeled by outcome.
	RunsTotal *prometheus.CounterVec

	// Measures whole-run wall time.
	RunDuration prometheus.Histogram

	// Counts per-node compute failures, labeled by node type.
	NodeFailuresTotal *prometheus.CounterVec

	// Measures how long a single node takes to compute all of its outputs.
	NodeComputeDuration *prometheus.HistogramVec

	// Tracks the number of nodes in the graph at the last run.
	GraphNodes prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridflow_evaluation_runs_total",
				Help: "Total number of evaluation runs",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gridflow_evaluation_run_duration_seconds",
				Help:    "Duration of evaluation runs in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		NodeFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridflow_node_failures_total",
				Help: "Total number of node compute failures",
			},
			[]string{"type"},
		),
		NodeComputeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridflow_node_compute_duration_seconds",
				Help:    "Duration of a node's compute functions in seconds",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 10},
			},
			[]string{"type"},
		),
		GraphNodes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gridflow_graph_nodes",
				Help: "Number of nodes in the graph at the last evaluation run",
			},
		),
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, d time.Duration, nodes int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(d.Seconds())
	m.GraphNodes.Set(float64(nodes))
}

// ObserveNode records one node's compute time and whether it failed.
func (m *Metrics) ObserveNode(nodeType string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.NodeComputeDuration.WithLabelValues(nodeType).Observe(d.Seconds())
	if failed {
		m.NodeFailuresTotal.WithLabelValues(nodeType).Inc()
	}
}
