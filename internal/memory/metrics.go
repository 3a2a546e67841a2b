// Package memory Prometheus metrics.
package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// recordsStored counts records written per tier.
	recordsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reasond",
			Subsystem: "memory",
			Name:      "records_stored_total",
			Help:      "Total number of records stored per tier",
		},
		[]string{"tier"},
	)

	// recordsEvicted counts capacity evictions per tier.
	recordsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reasond",
			Subsystem: "memory",
			Name:      "records_evicted_total",
			Help:      "Total number of records evicted at capacity per tier",
		},
		[]string{"tier"},
	)

	// recordsPruned counts decay prunes per tier.
	recordsPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reasond",
			Subsystem: "memory",
			Name:      "records_pruned_total",
			Help:      "Total number of records pruned by decay per tier",
		},
		[]string{"tier"},
	)

	// retrievals counts retrieval operations per tier.
	retrievals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reasond",
			Subsystem: "memory",
			Name:      "retrievals_total",
			Help:      "Total number of retrieval operations per tier",
		},
		[]string{"tier"},
	)

	// tierOccupancy tracks current record count per tier.
	tierOccupancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "reasond",
			Subsystem: "memory",
			Name:      "tier_occupancy",
			Help:      "Current number of records per tier",
		},
		[]string{"tier"},
	)
)
