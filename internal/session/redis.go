package session

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard implements Guard on Redis. Each session holds a key
// session:{owner}:{session} whose TTL equals the idle timeout, so Redis
// expiry is the freshness check: counting the owner's live keys counts the
// fresh sessions.
type RedisGuard struct {
	cli     *redis.Client
	timeout time.Duration
}

// NewRedisGuard creates a RedisGuard with the given idle timeout.
func NewRedisGuard(cli *redis.Client, timeout time.Duration) *RedisGuard {
	return &RedisGuard{cli: cli, timeout: timeout}
}

// Key components are escaped so an id containing ':' cannot cross the
// owner boundary and match another owner's keys in the scan below.
func sessionKey(ownerID, sessionID string) string {
	return fmt.Sprintf("session:%s:%s", url.QueryEscape(ownerID), url.QueryEscape(sessionID))
}

func ownerPattern(ownerID string) string {
	return fmt.Sprintf("session:%s:*", url.QueryEscape(ownerID))
}

// Touch upserts the session record and checks for concurrent sessions.
func (g *RedisGuard) Touch(ctx context.Context, ownerID, sessionID string) error {
	if err := g.cli.Set(ctx, sessionKey(ownerID, sessionID), time.Now().Unix(), g.timeout).Err(); err != nil {
		return fmt.Errorf("session touch for %s: %w", ownerID, err)
	}

	fresh := 0
	iter := g.cli.Scan(ctx, 0, ownerPattern(ownerID), 0).Iterator()
	for iter.Next(ctx) {
		fresh++
		if fresh > 1 {
			return ErrSessionConflict
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("session scan for %s: %w", ownerID, err)
	}
	return nil
}
