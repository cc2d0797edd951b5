// Package model defines the data models for the spin-ticket redemption service.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Ticket statuses. A ticket moves from pending to used exactly once and
// never back.
const (
	TicketStatusPending = "pending"
	TicketStatusUsed    = "used"
)

// Ticket represents a single-use, day-scoped spin entitlement.
// Prize is set if and only if the ticket is used.
type Ticket struct {
	ID        string     `db:"id"`
	OwnerID   string     `db:"owner_id"`
	Context   string     `db:"context"`
	DateKey   string     `db:"date_key"`
	Status    string     `db:"status"`
	Prize     *int64     `db:"prize"`
	CreatedAt time.Time  `db:"created_at"`
	UsedAt    *time.Time `db:"used_at"`
}

// Profile represents an owner's reward account.
type Profile struct {
	OwnerID     string    `db:"owner_id"`
	DisplayName string    `db:"display_name"`
	Balance     int64     `db:"balance"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// LedgerEntry records a reward credit. TicketID is unique so a replayed
// write for the same redemption is a no-op.
type LedgerEntry struct {
	ID        int64     `db:"id"`
	OwnerID   string    `db:"owner_id"`
	TicketID  string    `db:"ticket_id"`
	Amount    int64     `db:"amount"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
}

// Ledger entry reasons.
const (
	LedgerReasonSpinPrize = "spin_prize"
)

// Redemption validation errors. These are terminal: retrying the same
// redemption cannot succeed.
var (
	ErrTicketOwnership   = errors.New("ticket belongs to a different owner")
	ErrTicketAlreadyUsed = errors.New("ticket has already been used")
	ErrTicketExpired     = errors.New("ticket is no longer valid today")
)

// TicketID derives a stable ticket id from the owner, the context that
// earned the ticket, and the issuance day. Issuing the same ticket twice
// therefore produces the same id.
func TicketID(ownerID, context, dateKey string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", ownerID, context, dateKey)))
	return hex.EncodeToString(sum[:])[:32]
}

// DateKey formats t as a calendar-day key in the issuance timezone.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// ValidateForRedemption checks whether ticket may be redeemed by ownerID
// at time now. Expiry is revalidated here against the current day, not
// trusted from issuance time.
func ValidateForRedemption(t *Ticket, ownerID string, now time.Time, loc *time.Location) error {
	if t.OwnerID != ownerID {
		return ErrTicketOwnership
	}
	if t.Status == TicketStatusUsed {
		return ErrTicketAlreadyUsed
	}
	if t.DateKey != DateKey(now, loc) {
		return ErrTicketExpired
	}
	return nil
}
