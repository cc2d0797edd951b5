package ratelimit

import (
	"context"
	"sync"
	"time"
)

type record struct {
	lastRedemptionAt time.Time
	count            int64
}

// MemoryLimiter is an in-process Limiter for single-instance deployments
// and tests.
type MemoryLimiter struct {
	minInterval time.Duration
	now         func() time.Time // overridable in tests

	mu      sync.Mutex
	records map[string]*record
}

// NewMemoryLimiter creates a MemoryLimiter with the given minimum interval.
func NewMemoryLimiter(minInterval time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		minInterval: minInterval,
		now:         time.Now,
		records:     make(map[string]*record),
	}
}

// Check returns a *RateLimitError when ownerID redeemed too recently.
func (l *MemoryLimiter) Check(ctx context.Context, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if r, ok := l.records[ownerID]; ok {
		if elapsed := now.Sub(r.lastRedemptionAt); elapsed < l.minInterval {
			return &RateLimitError{Remaining: l.minInterval - elapsed}
		}
		r.lastRedemptionAt = now
		r.count++
		return nil
	}

	l.records[ownerID] = &record{lastRedemptionAt: now, count: 1}
	return nil
}

// Count returns the recorded redemption count for an owner.
func (l *MemoryLimiter) Count(ownerID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[ownerID]; ok {
		return r.count
	}
	return 0
}
