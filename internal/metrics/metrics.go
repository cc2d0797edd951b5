// Package metrics registers Prometheus collectors for the redemption flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redemption outcome labels.
const (
	OutcomeSuccess         = "success"
	OutcomeSessionConflict = "session_conflict"
	OutcomeRateLimited     = "rate_limited"
	OutcomeLockContention  = "lock_contention"
	OutcomeNotFound        = "not_found"
	OutcomeOwnership       = "ownership"
	OutcomeAlreadyUsed     = "already_used"
	OutcomeExpired         = "expired"
	OutcomeError           = "error"
)

var (
	// RedemptionsTotal counts redemption attempts by outcome.
	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spin_redemptions_total",
		Help: "Redemption attempts by outcome.",
	}, []string{"outcome"})

	// PrizesAwardedTotal counts awarded prizes by value.
	PrizesAwardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spin_prizes_awarded_total",
		Help: "Prizes awarded by value.",
	}, []string{"value"})

	// LedgerWriteFailures counts post-commit ledger writes left to the
	// reconciler.
	LedgerWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spin_ledger_write_failures_total",
		Help: "Post-commit ledger writes that failed and await reconciliation.",
	})

	// LedgerReplayedTotal counts ledger entries replayed by the reconciler.
	LedgerReplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spin_ledger_replayed_total",
		Help: "Ledger entries replayed by the reconciler.",
	})
)
