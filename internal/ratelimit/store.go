// Package ratelimit counts requests per key in fixed windows. Limits are
// advisory: counters live in process memory or in a shared Redis, and two
// relay instances using memory stores each enforce their own budget.
package ratelimit

import (
	"context"
	"time"
)

// DefaultWindow is the length of one counting window.
const DefaultWindow = time.Minute

// Decision is the outcome of one hit against a key.
type Decision struct {
	Allowed bool
	// Count is the number of hits accepted in the current window.
	Count int
	// RetryAfter is the time left until the window resets.
	RetryAfter time.Duration
}

// Store records hits. Allow must be atomic per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int) (Decision, error)
	// Sweep drops expired windows. Stores that expire keys themselves may no-op.
	Sweep(ctx context.Context)
	Ping(ctx context.Context) error
}
