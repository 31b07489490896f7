package core

import (
	"fmt"
	"sync/atomic"
)

// CallBudget caps the model calls of one task execution. A zero max is
// unlimited. Calls beyond the cap are refused and not counted.
type CallBudget struct {
	max   int64
	count atomic.Int64
}

func NewCallBudget(max int) *CallBudget {
	return &CallBudget{max: int64(max)}
}

// Increment claims one call.
func (b *CallBudget) Increment() error {
	n := b.count.Add(1)
	if b.max > 0 && n > b.max {
		b.count.Add(-1)
		return NewExecutionError("core.CallBudget", fmt.Errorf("model call budget of %d exhausted", b.max))
	}
	return nil
}

func (b *CallBudget) Count() int { return int(b.count.Load()) }

// Remaining is -1 for an unlimited budget.
func (b *CallBudget) Remaining() int {
	if b.max == 0 {
		return -1
	}
	return int(b.max - b.count.Load())
}
