// Package lock provides TTL-bounded exclusive leases for the redemption
// protocol. Two lease tiers are used per redemption: a user lease keeps one
// owner from redeeming on two devices at once, and a ticket lease keeps two
// requests for the same ticket from racing the transactional step.
//
// Leases are advisory. A caller that skips the lease protocol can still
// reach the store; the at-most-once guarantee depends on every caller
// acquiring the user lease before the ticket lease.
package lock

import (
	"context"
	"fmt"
	"time"
)

// Lease is a time-bounded exclusive claim on a key. Once ExpiresAt has
// passed any caller may reclaim the key; a crashed holder is recovered
// only through this expiry.
type Lease struct {
	Key       string
	Holder    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the lease is reclaimable at time now.
func (l *Lease) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Manager acquires and releases leases.
type Manager interface {
	// Acquire claims key for holder with the given TTL. It returns
	// ErrContention while any non-expired lease exists for key, including
	// one held by the same holder: holder tokens are single-use, with no
	// re-entry or extension.
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (*Lease, error)
	// Release drops the lease on key if holder still owns it. It is
	// idempotent: releasing an expired, reclaimed or never-acquired
	// lease is not an error.
	Release(ctx context.Context, key, holder string) error
}

// UserKey returns the lease key serializing all redemptions by one owner.
func UserKey(ownerID string) string {
	return fmt.Sprintf("user:%s", ownerID)
}

// TicketKey returns the lease key serializing redemptions of one ticket.
func TicketKey(ticketID string) string {
	return fmt.Sprintf("ticket:%s", ticketID)
}
