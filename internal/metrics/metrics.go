// Package metrics provides Prometheus metrics for the matching pass.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PairsCompared tracks scored primary/candidate pairs
	PairsCompared = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "scoring",
			Name:      "pairs_total",
			Help:      "Total number of primary/candidate pairs scored",
		},
	)

	// ResultsByTier tracks match results by quality tier
	ResultsByTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "quality",
			Name:      "results_total",
			Help:      "Total number of match results by quality tier",
		},
		[]string{"tier"},
	)

	// RecordsTruncated tracks primary records whose bucket scan hit the per-record deadline
	RecordsTruncated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "matching",
			Name:      "records_truncated_total",
			Help:      "Total number of primary records whose candidate scan was cut short by a deadline",
		},
	)

	// RunDuration tracks the wall time of a matching pass in seconds
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "matching",
			Name:      "run_duration_seconds",
			Help:      "Duration of matching passes in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// BlockSize tracks the number of candidates sharing a postal code
	BlockSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "blocking",
			Name:      "block_size",
			Help:      "Number of candidate records per postal code block",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50, 100, 250, 500},
		},
	)

	// HTTPRequestsTotal tracks API requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)
)
