// Package prize implements the weighted-random prize draw for the spin wheel.
//
// The payout table below is the authoritative distribution used for
// redemption. Any table shown to users for display purposes is a separate
// concern and must never feed into Draw.
package prize

import (
	"math/rand"
	"sync"
)

// Entry pairs a prize value with its probability weight.
type Entry struct {
	Value  int64
	Weight int
}

// Table is the authoritative payout distribution. Weights sum to 100 and
// the draw accumulates them in this order.
var Table = []Entry{
	{Value: 100, Weight: 3},
	{Value: 80, Weight: 5},
	{Value: 60, Weight: 10},
	{Value: 50, Weight: 12},
	{Value: 30, Weight: 15},
	{Value: 20, Weight: 23},
	{Value: 10, Weight: 32},
}

// TotalWeight returns the sum of all weights in the table.
func TotalWeight() int {
	total := 0
	for _, e := range Table {
		total += e.Weight
	}
	return total
}

// Pick maps a roll in [0,100) onto a prize value by cumulative weight.
// If rounding leaves the roll unmatched it falls back to the last (lowest)
// prize, so Pick never fails.
func Pick(roll float64) int64 {
	cumulative := 0.0
	for _, e := range Table {
		cumulative += float64(e.Weight)
		if roll < cumulative {
			return e.Value
		}
	}
	return Table[len(Table)-1].Value
}

// Selector draws prizes from the payout table. It holds its own random
// source so selectors stay independent; the mutex makes Draw safe for
// concurrent redemptions sharing one selector.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a Selector seeded from src.
func NewSelector(seed int64) *Selector {
	return &Selector{rng: rand.New(rand.NewSource(seed))}
}

// Draw returns a prize value according to the payout table.
func (s *Selector) Draw() int64 {
	s.mu.Lock()
	roll := s.rng.Float64() * float64(TotalWeight())
	s.mu.Unlock()
	return Pick(roll)
}
