package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisManager implements Manager on Redis. SET NX with a TTL gives the
// create-if-absent semantics directly, and Redis expiry replaces the manual
// expired-lease reclaim: a key left behind by a crashed holder vanishes
// when its TTL elapses.
type RedisManager struct {
	cli *redis.Client
}

// NewRedisManager creates a RedisManager on the given client.
func NewRedisManager(cli *redis.Client) *RedisManager {
	return &RedisManager{cli: cli}
}

// releaseScript deletes the lease only when the stored holder token still
// matches, so a holder whose lease expired and was reclaimed cannot delete
// the new holder's lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Acquire claims key for holder with the given TTL.
func (m *RedisManager) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (*Lease, error) {
	ok, err := m.cli.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrContention
	}
	now := time.Now()
	return &Lease{
		Key:       key,
		Holder:    holder,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Release drops the lease on key if holder still owns it.
func (m *RedisManager) Release(ctx context.Context, key, holder string) error {
	if err := releaseScript.Run(ctx, m.cli, []string{key}, holder).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("lock release %s: %w", key, err)
	}
	return nil
}
