package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-reward-service/internal/model"
)

type fakeTicketSource struct {
	tickets []*model.Ticket
	err     error
}

func (f *fakeTicketSource) ListUnledgered(ctx context.Context, usedBefore time.Time, limit int) ([]*model.Ticket, error) {
	return f.tickets, f.err
}

type fakeLedger struct {
	mu       sync.Mutex
	recorded map[string]int64
	err      error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{recorded: make(map[string]int64)}
}

func (f *fakeLedger) Record(ctx context.Context, ownerID, ticketID string, amount int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recorded[ticketID] = amount
	return nil
}

func usedTicket(id, ownerID string, prizeValue int64) *model.Ticket {
	usedAt := time.Now().Add(-time.Minute)
	return &model.Ticket{
		ID:      id,
		OwnerID: ownerID,
		Status:  model.TicketStatusUsed,
		Prize:   &prizeValue,
		UsedAt:  &usedAt,
	}
}

func TestReconcilerReplaysMissingEntries(t *testing.T) {
	source := &fakeTicketSource{tickets: []*model.Ticket{
		usedTicket("t1", "u1", 50),
		usedTicket("t2", "u2", 100),
	}}
	ledger := newFakeLedger()

	w := NewLedgerReconciler(source, ledger, time.Minute, time.Second)
	w.Tick(context.Background())

	require.Len(t, ledger.recorded, 2)
	assert.Equal(t, int64(50), ledger.recorded["t1"])
	assert.Equal(t, int64(100), ledger.recorded["t2"])
}

func TestReconcilerSkipsTicketWithoutPrize(t *testing.T) {
	broken := usedTicket("t1", "u1", 0)
	broken.Prize = nil
	source := &fakeTicketSource{tickets: []*model.Ticket{broken, usedTicket("t2", "u2", 20)}}
	ledger := newFakeLedger()

	w := NewLedgerReconciler(source, ledger, time.Minute, time.Second)
	w.Tick(context.Background())

	// The broken ticket is reported, not guessed; the healthy one is
	// still replayed.
	require.Len(t, ledger.recorded, 1)
	assert.Equal(t, int64(20), ledger.recorded["t2"])
}

func TestReconcilerToleratesListFailure(t *testing.T) {
	source := &fakeTicketSource{err: errors.New("db down")}
	ledger := newFakeLedger()

	w := NewLedgerReconciler(source, ledger, time.Minute, time.Second)
	w.Tick(context.Background())

	assert.Empty(t, ledger.recorded)
}

func TestReconcilerContinuesPastRecordFailure(t *testing.T) {
	source := &fakeTicketSource{tickets: []*model.Ticket{usedTicket("t1", "u1", 30)}}
	ledger := newFakeLedger()
	ledger.err = errors.New("ledger down")

	w := NewLedgerReconciler(source, ledger, time.Minute, time.Second)
	w.Tick(context.Background())

	assert.Empty(t, ledger.recorded)
}

func TestReconcilerStartStopsOnContextCancel(t *testing.T) {
	source := &fakeTicketSource{}
	w := NewLedgerReconciler(source, newFakeLedger(), 10*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after context cancel")
	}
}
