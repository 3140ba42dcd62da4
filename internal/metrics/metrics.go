// Package metrics provides Prometheus metrics for the identity service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks completed resolutions by outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "resolutions_total",
			Help:      "Total number of identity resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// ResolveAttemptsTotal tracks individual transaction attempts
	ResolveAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "resolve_attempts_total",
			Help:      "Total number of resolution transaction attempts by result",
		},
		[]string{"result"},
	)

	// ResolveDuration tracks end to end resolution latency
	ResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "identity",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of identity resolutions in seconds, retries included",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// LinkageViolationsTotal counts chained links found while resolving roots
	LinkageViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "linkage_violations_total",
			Help:      "Total number of chained contact links repaired during resolution",
		},
	)

	// LinkageViolations is the count reported by the last linkage audit
	LinkageViolations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "identity",
			Name:      "linkage_violations",
			Help:      "Number of contacts with broken linkage found by the last audit",
		},
	)
)
