package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterFirstRedemptionAllowed(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	require.NoError(t, l.Check(context.Background(), "u1"))
	assert.Equal(t, int64(1), l.Count("u1"))
}

func TestMemoryLimiterRejectsWithinInterval(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	ctx := context.Background()

	base := time.Now()
	l.now = func() time.Time { return base }
	require.NoError(t, l.Check(ctx, "u1"))

	// Second attempt 5 seconds later must be rejected with roughly 55
	// seconds remaining.
	l.now = func() time.Time { return base.Add(5 * time.Second) }
	err := l.Check(ctx, "u1")

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, 55, rateErr.RemainingSeconds())

	// The rejected attempt must not reset the interval or the count.
	assert.Equal(t, int64(1), l.Count("u1"))
}

func TestMemoryLimiterAllowsAfterInterval(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	ctx := context.Background()

	base := time.Now()
	l.now = func() time.Time { return base }
	require.NoError(t, l.Check(ctx, "u1"))

	l.now = func() time.Time { return base.Add(61 * time.Second) }
	require.NoError(t, l.Check(ctx, "u1"))
	assert.Equal(t, int64(2), l.Count("u1"))
}

func TestMemoryLimiterOwnersAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Check(ctx, "u1"))
	require.NoError(t, l.Check(ctx, "u2"))
}

func TestRateLimitErrorRoundsUp(t *testing.T) {
	err := &RateLimitError{Remaining: 54*time.Second + 200*time.Millisecond}
	assert.Equal(t, 55, err.RemainingSeconds())
	assert.Contains(t, err.Error(), "55")
}
