package cqrs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// dispatchTotal counts executed requests by request name and outcome.
	// Request names are a small fixed set (one per registered handler), so
	// label cardinality stays bounded.
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cqrs_dispatch_total",
			Help: "Total number of dispatched requests.",
		},
		[]string{"request", "outcome"},
	)

	// dispatchDuration records handler execution time by request name.
	// Outcome is intentionally omitted to keep histogram cardinality low.
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cqrs_dispatch_duration_seconds",
			Help:    "Duration of request handling in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"request"},
	)

	// cacheLookups counts cache decorator outcomes by query name. "bypass"
	// covers refresh requests, "degraded" covers store faults swallowed by
	// the decorator.
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cqrs_cache_lookups_total",
			Help: "Total number of query cache lookups by outcome.",
		},
		[]string{"query", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(dispatchTotal, dispatchDuration, cacheLookups)
}
