// Package telemetry exposes prometheus counters for the reward pipeline and
// the /metrics handler.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillpath_xp_awarded_total",
		Help: "XP awarded, by session kind.",
	}, []string{"kind"})

	SKPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillpath_skp_awarded_total",
		Help: "SKP credited to the ledger, by source kind.",
	}, []string{"source"})

	RaceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillpath_first_completion_conflicts_total",
		Help: "Concurrent first-completion submissions downgraded to review.",
	})

	PartialAggregateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillpath_partial_aggregate_failures_total",
		Help: "Rollup scope updates that failed after the event was recorded.",
	}, []string{"scope"})

	StreakBonusesPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillpath_streak_bonuses_paid_total",
		Help: "Streak bonus ledger entries written.",
	})

	IntegrityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillpath_integrity_checks_total",
		Help: "Integrity verification passes, by outcome.",
	}, []string{"outcome"})
)

// Handler returns the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
