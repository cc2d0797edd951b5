package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"spin-reward-service/internal/model"
	"spin-reward-service/internal/repository"
)

// memoryTicketStore implements TicketStore with the same semantics as the
// Postgres repository: one atomic validate-draw-write step per call.
type memoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*model.Ticket
	loc     *time.Location

	// stepDelay widens the critical section to make races observable.
	stepDelay time.Duration
}

func newMemoryTicketStore(loc *time.Location) *memoryTicketStore {
	return &memoryTicketStore{
		tickets: make(map[string]*model.Ticket),
		loc:     loc,
	}
}

func (s *memoryTicketStore) put(t *model.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
}

func (s *memoryTicketStore) get(id string) *model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tickets[id]; ok {
		copied := *t
		return &copied
	}
	return nil
}

func (s *memoryTicketStore) Redeem(ctx context.Context, ownerID, ticketID string, draw func() int64, now time.Time) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stepDelay > 0 {
		time.Sleep(s.stepDelay)
	}

	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	if err := model.ValidateForRedemption(t, ownerID, now, s.loc); err != nil {
		return nil, err
	}

	prizeValue := draw()
	t.Status = model.TicketStatusUsed
	t.Prize = &prizeValue
	usedAt := now
	t.UsedAt = &usedAt

	copied := *t
	return &copied, nil
}

// memoryLedger implements LedgerWriter, idempotent per ticket id.
type memoryLedger struct {
	mu      sync.Mutex
	entries map[string]model.LedgerEntry
	failAll bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{entries: make(map[string]model.LedgerEntry)}
}

func (l *memoryLedger) Record(ctx context.Context, ownerID, ticketID string, amount int64, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failAll {
		return errors.New("ledger store unavailable")
	}
	if _, ok := l.entries[ticketID]; ok {
		return nil
	}
	l.entries[ticketID] = model.LedgerEntry{
		OwnerID:  ownerID,
		TicketID: ticketID,
		Amount:   amount,
		Reason:   reason,
	}
	return nil
}

func (l *memoryLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// recordingGuard counts Touch calls so tests can assert the guard is
// skipped when no session id is supplied.
type recordingGuard struct {
	mu     sync.Mutex
	calls  int
	reject bool
}

func (g *recordingGuard) Touch(ctx context.Context, ownerID, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.reject {
		return errSessionRejected
	}
	return nil
}

var errSessionRejected = errors.New("rejected by test guard")
