package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryManager is an in-process lease table for single-instance
// deployments and tests. Acquire uses create-if-absent semantics: if a
// lease already exists and has expired it is deleted and creation is
// retried once; if it has not expired, ErrContention is returned.
//
// A background sweeper removes expired leases so the table does not grow
// with abandoned keys; correctness does not depend on it, since Acquire
// reclaims expired leases itself.
type MemoryManager struct {
	mu     sync.Mutex
	leases map[string]*Lease

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// NewMemoryManager creates a MemoryManager. If sweepInterval is positive a
// background sweeper runs until Close is called.
func NewMemoryManager(sweepInterval time.Duration) *MemoryManager {
	m := &MemoryManager{
		leases:    make(map[string]*Lease),
		sweepStop: make(chan struct{}),
	}
	if sweepInterval > 0 {
		go m.sweep(sweepInterval)
	}
	return m
}

// Acquire claims key for holder with the given TTL.
func (m *MemoryManager) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.leases[key]; ok {
		if !existing.Expired(now) {
			return nil, ErrContention
		}
		// Stale lease from a crashed holder: reclaim it.
		delete(m.leases, key)
	}

	lease := &Lease{
		Key:       key,
		Holder:    holder,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.leases[key] = lease
	return lease, nil
}

// Release drops the lease on key if holder still owns it.
func (m *MemoryManager) Release(ctx context.Context, key, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.leases[key]; ok && existing.Holder == holder {
		delete(m.leases, key)
	}
	return nil
}

// Len returns the number of leases currently in the table, expired or not.
func (m *MemoryManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leases)
}

// Close stops the background sweeper.
func (m *MemoryManager) Close() {
	m.sweepOnce.Do(func() { close(m.sweepStop) })
}

func (m *MemoryManager) sweep(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.sweepStop:
			return
		case <-t.C:
			now := time.Now()
			m.mu.Lock()
			for key, lease := range m.leases {
				if lease.Expired(now) {
					delete(m.leases, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
