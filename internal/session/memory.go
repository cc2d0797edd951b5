package session

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard is an in-process Guard for single-instance deployments and
// tests. Records are kept per owner and never actively purged; freshness
// is evaluated on each Touch.
type MemoryGuard struct {
	timeout time.Duration

	mu      sync.Mutex
	records map[string]map[string]time.Time // owner -> session -> last activity
}

// NewMemoryGuard creates a MemoryGuard with the given idle timeout.
func NewMemoryGuard(timeout time.Duration) *MemoryGuard {
	return &MemoryGuard{
		timeout: timeout,
		records: make(map[string]map[string]time.Time),
	}
}

// Touch upserts the session record and checks for concurrent sessions.
func (g *MemoryGuard) Touch(ctx context.Context, ownerID, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	sessions, ok := g.records[ownerID]
	if !ok {
		sessions = make(map[string]time.Time)
		g.records[ownerID] = sessions
	}
	sessions[sessionID] = now

	fresh := 0
	for _, lastActivity := range sessions {
		if now.Sub(lastActivity) < g.timeout {
			fresh++
		}
	}
	if fresh > 1 {
		return ErrSessionConflict
	}
	return nil
}
