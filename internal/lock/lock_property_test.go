// Property-based tests for lease mutual exclusion.
package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestMutualExclusionProperty checks that for any number of goroutines
// fighting over the same key, at most one holds the lease at any instant,
// and that every successful acquire is eventually matched by a release
// that makes the key available again.
func TestMutualExclusionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numGoroutines := rapid.IntRange(2, 16).Draw(t, "numGoroutines")
		attempts := rapid.IntRange(1, 10).Draw(t, "attempts")

		m := NewMemoryManager(0)
		ctx := context.Background()
		key := TicketKey("contested")

		var inCritical int64
		var maxInCritical int64
		var successes int64

		var wg sync.WaitGroup
		wg.Add(numGoroutines)
		for g := 0; g < numGoroutines; g++ {
			holder := fmt.Sprintf("holder-%d", g)
			go func() {
				defer wg.Done()
				for i := 0; i < attempts; i++ {
					if _, err := m.Acquire(ctx, key, holder, time.Minute); err != nil {
						continue
					}
					n := atomic.AddInt64(&inCritical, 1)
					for {
						cur := atomic.LoadInt64(&maxInCritical)
						if n <= cur || atomic.CompareAndSwapInt64(&maxInCritical, cur, n) {
							break
						}
					}
					atomic.AddInt64(&successes, 1)
					atomic.AddInt64(&inCritical, -1)
					_ = m.Release(ctx, key, holder)
				}
			}()
		}
		wg.Wait()

		if max := atomic.LoadInt64(&maxInCritical); max > 1 {
			t.Fatalf("mutual exclusion violated: %d holders in critical section", max)
		}
		if successes == 0 {
			t.Fatalf("no goroutine ever acquired the lease")
		}
	})
}

// TestExactlyOneWinnerProperty checks that for any N simultaneous
// acquirers of a fresh key, exactly one wins and the rest see contention.
func TestExactlyOneWinnerProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 32).Draw(t, "n")

		m := NewMemoryManager(0)
		ctx := context.Background()
		key := TicketKey("fresh")

		var winners int64
		var losers int64

		var wg sync.WaitGroup
		wg.Add(n)
		for g := 0; g < n; g++ {
			holder := fmt.Sprintf("holder-%d", g)
			go func() {
				defer wg.Done()
				if _, err := m.Acquire(ctx, key, holder, time.Minute); err != nil {
					atomic.AddInt64(&losers, 1)
					return
				}
				atomic.AddInt64(&winners, 1)
			}()
		}
		wg.Wait()

		if winners != 1 {
			t.Fatalf("expected exactly 1 winner, got %d (losers=%d)", winners, losers)
		}
		if losers != int64(n-1) {
			t.Fatalf("expected %d losers, got %d", n-1, losers)
		}
	})
}
