package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login gate metrics
var (
	LoginDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_login_decisions_total",
			Help: "Pre-authentication decisions by result and blocking layer",
		},
		[]string{"result", "layer"},
	)

	FailedAttemptsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_failed_attempts_recorded_total",
			Help: "Failed login attempts written to the attempt store",
		},
	)

	AttemptsCleared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_attempts_cleared_total",
			Help: "Attempt records removed by successful logins",
		},
	)

	AttemptsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_attempts_purged_total",
			Help: "Attempt records removed by the retention purge",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_store_errors_total",
			Help: "Attempt store errors by operation",
		},
		[]string{"operation"},
	)

	SecurityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_security_events_total",
			Help: "Security events emitted by type",
		},
		[]string{"event_type"},
	)
)
