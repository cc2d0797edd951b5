// Package ratelimit enforces the minimum interval between two redemptions
// by the same owner. The check runs before any lease is acquired so a
// rate-limited caller is rejected cheaply.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// RateLimitError reports a redemption attempted before the minimum
// interval elapsed. Remaining is how long the caller must wait.
type RateLimitError struct {
	Remaining time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry in %ds", e.RemainingSeconds())
}

// RemainingSeconds returns the wait rounded up to whole seconds.
func (e *RateLimitError) RemainingSeconds() int {
	return int((e.Remaining + time.Second - 1) / time.Second)
}

// Limiter checks and records redemption attempts per owner.
type Limiter interface {
	// Check returns a *RateLimitError when ownerID redeemed less than
	// the minimum interval ago. On success it records the attempt time
	// and increments the owner's redemption count.
	Check(ctx context.Context, ownerID string) error
}
