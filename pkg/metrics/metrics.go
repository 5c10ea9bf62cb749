// Package metrics exposes Prometheus metrics for the leaderboard engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stride"

// Custom registry to avoid the default Go collector noise.
var registry = prometheus.NewRegistry()

var (
	// ScoreApplies counts contributions folded into the boards.
	ScoreApplies = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "score_applies_total",
		Help:      "Contributions applied to the leaderboard accumulator.",
	})

	// ScoreApplyFailures counts contributions rejected by storage.
	ScoreApplyFailures = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "score_apply_failures_total",
		Help:      "Contributions that failed to apply.",
	})

	// CacheHits counts leaderboard cache hits by tier (local, shared).
	CacheHits = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_cache_hits_total",
		Help:      "Leaderboard cache hits by tier.",
	}, []string{"tier"})

	// CacheMisses counts reads that fell through to the aggregation store.
	CacheMisses = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_cache_misses_total",
		Help:      "Leaderboard reads recomputed from the store.",
	})

	// Claims counts settlement attempts by outcome.
	Claims = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reward_claims_total",
		Help:      "Reward claims by outcome.",
	}, []string{"result"})

	// DeliveryFailures counts grants recorded in the ledger whose delivery
	// failed. Each one needs reconciliation.
	DeliveryFailures = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reward_delivery_failures_total",
		Help:      "Recorded grants whose reward delivery failed.",
	})
)

// Claim outcome label values.
const (
	ClaimGranted        = "granted"
	ClaimAlreadySettled = "already_settled"
	ClaimNoActivity     = "no_activity"
	ClaimNoReward       = "no_reward"
	ClaimError          = "error"
)

// Handler serves the metrics endpoint for this registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
