package core

import (
	"context"
	"fmt"
	"sync"
)

// CallBudget enforces a maximum number of provider calls shared across every
// agent participating in one workflow execution. A nil *CallBudget is valid and
// unlimited, so callers may pass it through without checks.
type CallBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallBudget creates a budget allowing max calls.
// If max <= 0, unlimited calls are allowed.
func NewCallBudget(max int) *CallBudget {
	if max < 0 {
		max = 0
	}
	return &CallBudget{max: max}
}

// Spend records one provider call and returns ErrBudgetExceeded once the
// limit has been passed.
func (b *CallBudget) Spend() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.count >= b.max {
		return fmt.Errorf("%w: max %d provider calls", ErrBudgetExceeded, b.max)
	}
	b.count++

	return nil
}

// Count returns the current number of calls made.
func (b *CallBudget) Count() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Remaining returns how many calls are left before hitting the limit.
func (b *CallBudget) Remaining() int {
	if b == nil {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max == 0 {
		return -1 // unlimited
	}

	return b.max - b.count
}

type budgetKey struct{}

// WithBudget returns a context carrying b, so provider calls made on behalf
// of the caller (for example by a delegated agent) are charged to it. A nil
// budget leaves ctx unchanged.
func WithBudget(ctx context.Context, b *CallBudget) context.Context {
	if b == nil {
		return ctx
	}
	return context.WithValue(ctx, budgetKey{}, b)
}

// BudgetFrom returns the budget attached by WithBudget, or nil.
func BudgetFrom(ctx context.Context) *CallBudget {
	b, _ := ctx.Value(budgetKey{}).(*CallBudget)
	return b
}
