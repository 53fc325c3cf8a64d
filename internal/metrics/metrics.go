// Package metrics holds the Prometheus collectors for every network boundary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stxwatch"

var (
	ReadCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "read",
			Name:      "calls_total",
			Help:      "Read-only contract calls by outcome (ok, absent, error).",
		},
		[]string{"outcome"},
	)

	ReadCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "read",
			Name:      "call_duration_seconds",
			Help:      "Wall time of a read-only call across all endpoints and retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Transaction broadcasts by outcome (ok, rejected, error).",
		},
		[]string{"outcome"},
	)

	TxPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "polls_total",
			Help:      "Status polls by result (not_found, pending, success, aborted, error).",
		},
		[]string{"result"},
	)

	TxOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "outcomes_total",
			Help:      "Finished tracking runs by terminal state.",
		},
		[]string{"state"},
	)

	MetadataFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "fetches_total",
			Help:      "Off-chain metadata lookups by outcome (hit, ok, error).",
		},
		[]string{"outcome"},
	)

	ListingsAssembled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_assembled_total",
			Help:      "Listings that resolved both on-chain and off-chain.",
		},
	)
)
