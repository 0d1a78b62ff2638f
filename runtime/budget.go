package runtime

import (
	"fmt"
	"sync"
)

// ErrModelCallBudget is returned when a turn exceeds its model call budget.
var ErrModelCallBudget = fmt.Errorf("model call budget exceeded")

// callBudget caps the number of model calls a single turn may make across
// all agents it reaches. max == 0 means unlimited.
type callBudget struct {
	mu    sync.Mutex
	max   int
	count int
}

func newCallBudget(max int) *callBudget {
	return &callBudget{max: max}
}

// spend records one model call and fails once the budget is exhausted.
func (b *callBudget) spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if b.max > 0 && b.count > b.max {
		return fmt.Errorf("%w: %d", ErrModelCallBudget, b.max)
	}
	return nil
}

// used returns the number of calls made so far.
func (b *callBudget) used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
