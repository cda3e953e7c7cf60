package ratelimit

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps fixed-window counters in a concurrent map.
type MemoryStore struct {
	windows *xsync.Map[string, window]
	length  time.Duration
	now     func() time.Time
}

func NewMemoryStore(length time.Duration) *MemoryStore {
	if length <= 0 {
		length = DefaultWindow
	}
	return &MemoryStore{
		windows: xsync.NewMap[string, window](),
		length:  length,
		now:     time.Now,
	}
}

// WithClock swaps the time source. Tests only.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int) (Decision, error) {
	now := s.now()
	var d Decision
	s.windows.Compute(key, func(old window, loaded bool) (window, xsync.ComputeOp) {
		if !loaded || now.After(old.resetAt) {
			d = Decision{Allowed: true, Count: 1, RetryAfter: s.length}
			return window{count: 1, resetAt: now.Add(s.length)}, xsync.UpdateOp
		}
		d.RetryAfter = old.resetAt.Sub(now)
		if old.count >= limit {
			d.Count = old.count
			return old, xsync.CancelOp
		}
		old.count++
		d.Allowed = true
		d.Count = old.count
		return old, xsync.UpdateOp
	})
	return d, nil
}

func (s *MemoryStore) Sweep(context.Context) {
	now := s.now()
	s.windows.Range(func(key string, w window) bool {
		if now.After(w.resetAt) {
			s.windows.Compute(key, func(old window, loaded bool) (window, xsync.ComputeOp) {
				if loaded && now.After(old.resetAt) {
					return old, xsync.DeleteOp
				}
				return old, xsync.CancelOp
			})
		}
		return true
	})
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len reports how many windows are tracked.
func (s *MemoryStore) Len() int {
	return s.windows.Size()
}
