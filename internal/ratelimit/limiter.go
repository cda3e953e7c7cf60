package ratelimit

import (
	"context"
	"strings"

	"tipjar/internal/logging"
)

const (
	DefaultPerIP  = 10
	DefaultPerFan = 5
)

// Scope names which budget a request exhausted.
type Scope string

const (
	ScopeIP  Scope = "ip"
	ScopeFan Scope = "fan"
)

// Limiter applies the per-IP and per-fan budgets on top of a Store.
type Limiter struct {
	store  Store
	logger logging.Logger
	perIP  int
	perFan int
}

func NewLimiter(store Store, perIP, perFan int, logger logging.Logger) *Limiter {
	if perIP <= 0 {
		perIP = DefaultPerIP
	}
	if perFan <= 0 {
		perFan = DefaultPerFan
	}
	return &Limiter{
		store:  store,
		logger: logging.ForComponent(logger, logging.ComponentRateLimiter),
		perIP:  perIP,
		perFan: perFan,
	}
}

func IPKey(ip string) string {
	return "ip:" + ip
}

func FanKey(fan string) string {
	return "fan:" + strings.ToLower(fan)
}

// Sweep runs at the start of each request.
func (l *Limiter) Sweep(ctx context.Context) {
	l.store.Sweep(ctx)
}

func (l *Limiter) AllowIP(ctx context.Context, ip string) Decision {
	return l.allow(ctx, IPKey(ip), l.perIP)
}

func (l *Limiter) AllowFan(ctx context.Context, fan string) Decision {
	return l.allow(ctx, FanKey(fan), l.perFan)
}

// allow fails open: a store error lets the request through.
func (l *Limiter) allow(ctx context.Context, key string, limit int) Decision {
	d, err := l.store.Allow(ctx, key, limit)
	if err != nil {
		l.logger.Warn().
			Err(err).
			Str(logging.FieldKey, key).
			Msg("rate limit store unavailable, allowing request")
		return Decision{Allowed: true}
	}
	if !d.Allowed {
		l.logger.Debug().
			Str(logging.FieldKey, key).
			Int("count", d.Count).
			Int("limit", limit).
			Msg("rate limit exceeded")
	}
	return d
}

func (l *Limiter) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

func (l *Limiter) PerIP() int {
	return l.perIP
}

func (l *Limiter) PerFan() int {
	return l.perFan
}
