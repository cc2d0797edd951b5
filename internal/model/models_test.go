package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketIDIsDeterministic(t *testing.T) {
	a := TicketID("u1", "flashcards-complete", "2026-08-30")
	b := TicketID("u1", "flashcards-complete", "2026-08-30")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	// Any changed component yields a different id.
	assert.NotEqual(t, a, TicketID("u2", "flashcards-complete", "2026-08-30"))
	assert.NotEqual(t, a, TicketID("u1", "quiz-complete", "2026-08-30"))
	assert.NotEqual(t, a, TicketID("u1", "flashcards-complete", "2026-08-31"))
}

func TestDateKeyUsesTimezone(t *testing.T) {
	// 23:30 UTC on the 29th is already the 30th in Tehran.
	tehran, err := time.LoadLocation("Asia/Tehran")
	require.NoError(t, err)

	at := time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-29", DateKey(at, time.UTC))
	assert.Equal(t, "2026-08-30", DateKey(at, tehran))
}

func TestValidateForRedemption(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fresh := func() *Ticket {
		return &Ticket{
			ID:      "t1",
			OwnerID: "u1",
			DateKey: DateKey(now, time.UTC),
			Status:  TicketStatusPending,
		}
	}

	assert.NoError(t, ValidateForRedemption(fresh(), "u1", now, time.UTC))

	assert.ErrorIs(t, ValidateForRedemption(fresh(), "u2", now, time.UTC), ErrTicketOwnership)

	used := fresh()
	used.Status = TicketStatusUsed
	assert.ErrorIs(t, ValidateForRedemption(used, "u1", now, time.UTC), ErrTicketAlreadyUsed)

	stale := fresh()
	stale.DateKey = "2026-08-29"
	assert.ErrorIs(t, ValidateForRedemption(stale, "u1", now, time.UTC), ErrTicketExpired)

	// Ownership is checked before status: a stranger probing a used
	// ticket learns nothing about it.
	usedForeign := fresh()
	usedForeign.Status = TicketStatusUsed
	assert.ErrorIs(t, ValidateForRedemption(usedForeign, "u2", now, time.UTC), ErrTicketOwnership)
}
