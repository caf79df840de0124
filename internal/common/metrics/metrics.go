// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_matches_scored_total",
			Help: "Total number of freight/vehicle pairs scored",
		},
		[]string{"tier"},
	)

	MatchesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_matches_upserted_total",
			Help: "Total number of match suggestions created or updated",
		},
		[]string{"outcome"}, // created | updated
	)

	BatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_batch_runs_total",
			Help: "Total number of batch matcher runs",
		},
		[]string{"status"}, // completed | cancelled
	)

	BatchOfferFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_batch_offer_failures_total",
			Help: "Per-offer failures recorded in batch summaries",
		},
	)

	FeedbackRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_feedback_recorded_total",
			Help: "Total number of operator responses recorded",
		},
		[]string{"action"}, // accept | reject
	)

	Recalibrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_recalibrations_total",
			Help: "Total number of recalibration attempts",
		},
		[]string{"result"}, // published | skipped_insufficient_data | locked
	)

	LookupFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_lookup_fallbacks_total",
			Help: "External lookup failures substituted with the neutral default",
		},
		[]string{"lookup"}, // pricing | emissions | reliability
	)

	SmartMatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "engine_smart_match_duration_seconds",
			Help: "Duration of single smart-match runs in seconds",
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_batch_duration_seconds",
			Help:    "Duration of batch matcher runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)
