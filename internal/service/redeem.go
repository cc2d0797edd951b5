// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"spin-reward-service/internal/lock"
	"spin-reward-service/internal/metrics"
	"spin-reward-service/internal/model"
	"spin-reward-service/internal/prize"
	"spin-reward-service/internal/ratelimit"
	"spin-reward-service/internal/repository"
	"spin-reward-service/internal/session"
)

// TicketStore performs the atomic redemption state transition. The
// production implementation is repository.TicketRepository; tests use an
// in-memory store with the same semantics.
type TicketStore interface {
	Redeem(ctx context.Context, ownerID, ticketID string, draw func() int64, now time.Time) (*model.Ticket, error)
}

// LedgerWriter appends a reward-ledger entry and credits the owner's
// balance. Writes must be idempotent per ticket id.
type LedgerWriter interface {
	Record(ctx context.Context, ownerID, ticketID string, amount int64, reason string) error
}

// RedeemRequest carries a redemption attempt. SessionID is optional; when
// empty the session guard is skipped. DeviceFingerprint is opaque and only
// used as lock-holder metadata.
type RedeemRequest struct {
	OwnerID           string
	TicketID          string
	SessionID         string
	DeviceFingerprint string
}

// RedeemResult is the outcome of a successful redemption. LedgerPending is
// set when the ticket committed but the ledger write failed; the balance
// credit will be replayed by the reconciler and the caller must not retry
// the redemption itself.
type RedeemResult struct {
	Prize         int64
	Ticket        *model.Ticket
	LedgerPending bool
}

// RedeemService orchestrates the redemption protocol: session guard, rate
// limit, the two lock tiers, the transactional state transition, and the
// best-effort ledger write.
type RedeemService struct {
	sessions session.Guard
	limiter  ratelimit.Limiter
	locks    lock.Manager
	store    TicketStore
	ledger   LedgerWriter
	selector *prize.Selector

	userLockTTL   time.Duration
	ticketLockTTL time.Duration
}

// NewRedeemService creates a new RedeemService instance.
func NewRedeemService(
	sessions session.Guard,
	limiter ratelimit.Limiter,
	locks lock.Manager,
	store TicketStore,
	ledger LedgerWriter,
	selector *prize.Selector,
	userLockTTL, ticketLockTTL time.Duration,
) *RedeemService {
	return &RedeemService{
		sessions:      sessions,
		limiter:       limiter,
		locks:         locks,
		store:         store,
		ledger:        ledger,
		selector:      selector,
		userLockTTL:   userLockTTL,
		ticketLockTTL: ticketLockTTL,
	}
}

// Redeem consumes a spin ticket and awards a prize. Across any number of
// concurrent attempts for the same ticket exactly one succeeds; the rest
// observe lock contention or a terminal validation error. Locks are always
// released, whichever step fails; a holder that dies mid-flight is
// recovered by lease TTL expiry.
func (s *RedeemService) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	if req.SessionID != "" {
		if err := s.sessions.Touch(ctx, req.OwnerID, req.SessionID); err != nil {
			s.countOutcome(err)
			return nil, err
		}
	}

	// Cheap rejection before any lease is taken.
	if err := s.limiter.Check(ctx, req.OwnerID); err != nil {
		s.countOutcome(err)
		return nil, err
	}

	// The holder token ties a lease to this attempt; the fingerprint is
	// kept in it for diagnostics only.
	holder := uuid.NewString()
	if req.DeviceFingerprint != "" {
		holder = fmt.Sprintf("%s/%s", req.DeviceFingerprint, holder)
	}

	// User lock before ticket lock, always in this order, so two
	// attempts can never hold one tier each and wait on the other.
	userKey := lock.UserKey(req.OwnerID)
	if _, err := s.locks.Acquire(ctx, userKey, holder, s.userLockTTL); err != nil {
		s.countOutcome(err)
		return nil, err
	}
	defer s.release(userKey, holder)

	ticketKey := lock.TicketKey(req.TicketID)
	if _, err := s.locks.Acquire(ctx, ticketKey, holder, s.ticketLockTTL); err != nil {
		s.countOutcome(err)
		return nil, err
	}
	defer s.release(ticketKey, holder)

	ticket, err := s.store.Redeem(ctx, req.OwnerID, req.TicketID, s.selector.Draw, time.Now())
	if err != nil {
		s.countOutcome(err)
		return nil, err
	}

	result := &RedeemResult{
		Prize:  *ticket.Prize,
		Ticket: ticket,
	}
	metrics.RedemptionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.PrizesAwardedTotal.WithLabelValues(fmt.Sprintf("%d", result.Prize)).Inc()

	// The ticket is final from here on. The ledger credit is best
	// effort: a failure is logged and left to the reconciler, never
	// surfaced as a redemption failure.
	if err := s.ledger.Record(ctx, req.OwnerID, req.TicketID, result.Prize, model.LedgerReasonSpinPrize); err != nil {
		log.Warn().
			Err(err).
			Str("owner_id", req.OwnerID).
			Str("ticket_id", req.TicketID).
			Int64("prize", result.Prize).
			Msg("Ledger write failed after redemption commit")
		metrics.LedgerWriteFailures.Inc()
		result.LedgerPending = true
	}

	log.Info().
		Str("owner_id", req.OwnerID).
		Str("ticket_id", req.TicketID).
		Int64("prize", result.Prize).
		Bool("ledger_pending", result.LedgerPending).
		Msg("Ticket redeemed")

	return result, nil
}

// release drops a lease unconditionally. Release errors are logged and
// swallowed: the lease TTL bounds the damage, and the redemption outcome
// is already decided.
func (s *RedeemService) release(key, holder string) {
	// Releases run even when the request context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.locks.Release(ctx, key, holder); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Lock release failed; lease will expire by TTL")
	}
}

func (s *RedeemService) countOutcome(err error) {
	metrics.RedemptionsTotal.WithLabelValues(outcomeFor(err)).Inc()
}

func outcomeFor(err error) string {
	var rateErr *ratelimit.RateLimitError
	switch {
	case errors.Is(err, session.ErrSessionConflict):
		return metrics.OutcomeSessionConflict
	case errors.As(err, &rateErr):
		return metrics.OutcomeRateLimited
	case errors.Is(err, lock.ErrContention):
		return metrics.OutcomeLockContention
	case errors.Is(err, repository.ErrTicketNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, model.ErrTicketOwnership):
		return metrics.OutcomeOwnership
	case errors.Is(err, model.ErrTicketAlreadyUsed):
		return metrics.OutcomeAlreadyUsed
	case errors.Is(err, model.ErrTicketExpired):
		return metrics.OutcomeExpired
	default:
		return metrics.OutcomeError
	}
}
