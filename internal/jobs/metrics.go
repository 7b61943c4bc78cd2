package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// consumerEvents counts consumed events by event name and outcome.
	// Outcomes: applied, noop, retried, dead_letter.
	consumerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_consumer_events_total",
			Help: "Total number of consumed job events by outcome.",
		},
		[]string{"event", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(consumerEvents)
}
