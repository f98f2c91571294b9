// Package services – Prometheus instrumentation for the ingestion pipeline.
//
// Collectors use a single low-cardinality "outcome" label (accepted,
// rejected, timeout, rate_limited, failed) rather than per-media or
// per-user labels.
package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeAccepted    = "accepted"
	outcomeRejected    = "rejected"
	outcomeTimeout     = "timeout"
	outcomeRateLimited = "rate_limited"
	outcomeFailed      = "failed"
)

var (
	// submissions counts review submissions by outcome.
	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediareview_submissions_total",
			Help: "Total number of review submissions by outcome.",
		},
		[]string{"outcome"},
	)

	// submitLat records end-to-end submission duration in seconds,
	// including the per-media section wait.
	submitLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediareview_submit_duration_seconds",
			Help:    "Duration of review submissions in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(submissions, submitLat)
}

// observeSubmit records one finished submission.
func observeSubmit(outcome string, start time.Time) {
	submissions.WithLabelValues(outcome).Inc()
	submitLat.Observe(time.Since(start).Seconds())
}
