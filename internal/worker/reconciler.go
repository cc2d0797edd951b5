// Package worker runs background maintenance for the redemption service.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"spin-reward-service/internal/metrics"
	"spin-reward-service/internal/model"
)

// UnledgeredSource lists used tickets that have no ledger entry yet.
type UnledgeredSource interface {
	ListUnledgered(ctx context.Context, usedBefore time.Time, limit int) ([]*model.Ticket, error)
}

// LedgerWriter replays a missing ledger entry. Implementations must be
// idempotent per ticket id.
type LedgerWriter interface {
	Record(ctx context.Context, ownerID, ticketID string, amount int64, reason string) error
}

// LedgerReconciler periodically scans for used tickets whose ledger write
// never landed (a crash between the redemption commit and the ledger
// credit) and replays it. Ledger writes are idempotent by ticket id, so
// racing an in-flight write is harmless.
type LedgerReconciler struct {
	tickets    UnledgeredSource
	ledger     LedgerWriter
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
}

// NewLedgerReconciler creates a LedgerReconciler. staleAfter is how old a
// redemption must be before its missing ledger entry is considered lost
// rather than in flight.
func NewLedgerReconciler(tickets UnledgeredSource, ledger LedgerWriter, interval, staleAfter time.Duration) *LedgerReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return &LedgerReconciler{
		tickets:    tickets,
		ledger:     ledger,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  200,
	}
}

// Start runs the reconcile loop until ctx is cancelled.
func (w *LedgerReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick performs one reconcile pass.
func (w *LedgerReconciler) Tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	tickets, err := w.tickets.ListUnledgered(ctx, cutoff, w.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ledger reconciler: list unledgered tickets failed")
		return
	}

	for _, t := range tickets {
		if t.Prize == nil {
			// Used without a prize would mean a broken transactional
			// invariant; report it loudly instead of inventing a value.
			log.Error().Str("ticket_id", t.ID).Msg("Ledger reconciler: used ticket has no prize")
			continue
		}
		if err := w.ledger.Record(ctx, t.OwnerID, t.ID, *t.Prize, model.LedgerReasonSpinPrize); err != nil {
			log.Warn().Err(err).Str("ticket_id", t.ID).Msg("Ledger reconciler: replay failed")
			continue
		}
		metrics.LedgerReplayedTotal.Inc()
		log.Info().
			Str("ticket_id", t.ID).
			Str("owner_id", t.OwnerID).
			Int64("prize", *t.Prize).
			Msg("Ledger reconciler: replayed missing ledger entry")
	}
}
