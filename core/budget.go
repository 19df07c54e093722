package core

import (
	"fmt"
	"sync"
)

// ModelBudget enforces a maximum number of inference calls per turn, bounding
// classify + generate + continuation fan-out.
type ModelBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewModelBudget creates a budget with a max number of calls.
// If max == 0, unlimited calls are allowed.
func NewModelBudget(max int) *ModelBudget {
	return &ModelBudget{max: max}
}

// Spend consumes one call from the budget, failing once the limit is exceeded.
func (b *ModelBudget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	if b.max > 0 && b.count > b.max {
		return fmt.Errorf("exceeded max model calls per turn: %d", b.max)
	}
	return nil
}

// Count returns the number of calls made so far.
func (b *ModelBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (b *ModelBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max == 0 {
		return -1
	}
	return b.max - b.count
}
