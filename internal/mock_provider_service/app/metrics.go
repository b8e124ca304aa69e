package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mock_provider",
			Name:      "webhook_attempts_total",
			Help:      "Total number of status callback HTTP attempts.",
		},
		[]string{"result"}, // success, http_error, transport_error
	)

	webhookAttemptDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mock_provider",
			Name:      "webhook_attempt_duration_seconds",
			Help:      "Duration of status callback HTTP attempts.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	webhookDeliveriesExhaustedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mock_provider",
			Name:      "webhook_deliveries_exhausted_total",
			Help:      "Deliveries that failed on every retry attempt.",
		},
	)

	statusTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mock_provider",
			Name:      "status_transitions_total",
			Help:      "Status transitions applied by progression runs.",
		},
		[]string{"kind", "status"},
	)

	progressionRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mock_provider",
			Name:      "progression_runs_total",
			Help:      "Finished progression runs by outcome and result.",
		},
		[]string{"kind", "outcome", "result"}, // result: completed, skipped, error
	)

	progressionRunsInFlightGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mock_provider",
			Name:      "progression_runs_in_flight",
			Help:      "Progression runs currently scheduled and not yet finished.",
		},
	)

	resourcesCreatedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mock_provider",
			Name:      "resources_created_total",
			Help:      "Messages and calls accepted through the provider API.",
		},
		[]string{"kind"},
	)
)
