package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

var (
	// actionExecs counts dispatched actions by type and outcome
	// (ok/failed/skipped).
	actionExecs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_actions_total",
			Help: "Total number of dispatched actions by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	// actionLat records collaborator call duration by action type. Skipped
	// actions are not observed.
	actionLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "donation_action_duration_seconds",
			Help:    "Duration of collaborator calls in seconds by action type.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(actionExecs, actionLat)
}

func observeAction(t domain.ActionType, outcome string, d time.Duration) {
	actionExecs.WithLabelValues(string(t), outcome).Inc()
	if outcome != "skipped" {
		actionLat.WithLabelValues(string(t)).Observe(d.Seconds())
	}
}
