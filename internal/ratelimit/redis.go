package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisClient is the subset of the go-redis API the limiter uses. Narrowing
// it lets tests inject failing commands.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisLimiter implements Limiter on Redis. The interval gate is a SET NX
// key whose TTL equals the minimum interval; while the key lives, PTTL
// gives the remaining wait. A separate counter key tracks the owner's
// total redemption count.
//
// The limiter is a non-critical guard: when failOpen is set, store
// failures are logged and treated as "allow" rather than blocking
// redemption on Redis availability.
type RedisLimiter struct {
	cli         RedisClient
	minInterval time.Duration
	failOpen    bool
}

// NewRedisLimiter creates a RedisLimiter.
func NewRedisLimiter(cli RedisClient, minInterval time.Duration, failOpen bool) *RedisLimiter {
	return &RedisLimiter{cli: cli, minInterval: minInterval, failOpen: failOpen}
}

// Key components are escaped so an owner id containing ':' cannot collide
// with another owner's keys or with the count suffix.
func gateKey(ownerID string) string  { return "rate:" + url.QueryEscape(ownerID) }
func countKey(ownerID string) string { return "rate:" + url.QueryEscape(ownerID) + ":count" }

// Check returns a *RateLimitError when ownerID redeemed too recently.
func (l *RedisLimiter) Check(ctx context.Context, ownerID string) error {
	ok, err := l.cli.SetNX(ctx, gateKey(ownerID), time.Now().Unix(), l.minInterval).Result()
	if err != nil {
		return l.storeFailure(ownerID, err)
	}
	if !ok {
		remaining, err := l.cli.PTTL(ctx, gateKey(ownerID)).Result()
		if err != nil {
			return l.storeFailure(ownerID, err)
		}
		if remaining < 0 {
			// The gate key vanished between SETNX and PTTL; the
			// interval has effectively elapsed.
			return nil
		}
		return &RateLimitError{Remaining: remaining}
	}

	if err := l.cli.Incr(ctx, countKey(ownerID)).Err(); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("Rate limiter count update failed")
	}
	return nil
}

func (l *RedisLimiter) storeFailure(ownerID string, err error) error {
	if l.failOpen {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("Rate limiter store failed, allowing redemption")
		return nil
	}
	return fmt.Errorf("rate limit check for %s: %w", ownerID, err)
}
