// Package engine Prometheus metrics.
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// tasksTotal counts processed tasks by type and outcome.
	// Labels: type (path_finding, relation_prediction, complex_reasoning),
	// outcome (success, low_confidence, inconsistent_evidence, timeout, error)
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reasond",
			Subsystem: "engine",
			Name:      "tasks_total",
			Help:      "Total number of processed tasks by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// taskDuration tracks end-to-end task reasoning time.
	taskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reasond",
			Subsystem: "engine",
			Name:      "task_duration_seconds",
			Help:      "End-to-end task reasoning duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// refinements counts refinement attempts across all tasks.
	refinements = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reasond",
			Subsystem: "engine",
			Name:      "refinements_total",
			Help:      "Total number of refinement attempts",
		},
	)
)
