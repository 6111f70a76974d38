package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	readRate  = time.Second
	writeRate = 2 * time.Second
)

type Kind int

const (
	Read Kind = iota
	Write
)

func (k Kind) String() string {
	if k == Write {
		return "write"
	}
	return "read"
}

// RateLimiter spaces out API calls of the same kind.
type RateLimiter struct {
	lastSent map[Kind]time.Time
	mu       sync.Mutex
	log      *slog.Logger
}

func New(log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		lastSent: make(map[Kind]time.Time),
		log:      log,
	}
}

// Wait blocks until a call of the given kind may be made. The slot is
// reserved before sleeping, so waiters of one kind queue up without blocking
// the other kind.
func (rl *RateLimiter) Wait(ctx context.Context, kind Kind) error {
	delay := rl.reserve(kind)
	if delay <= 0 {
		return nil
	}

	rl.log.DebugContext(ctx, "Rate limiting request",
		"kind", kind.String(),
		"delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rl *RateLimiter) reserve(kind Kind) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	var delay time.Duration
	if lastSent, exists := rl.lastSent[kind]; exists {
		delay = getDelay(kind, lastSent)
	}

	rl.lastSent[kind] = now.Add(delay)

	return delay
}

func getDelay(kind Kind, lastSent time.Time) time.Duration {
	elapsed := time.Since(lastSent)
	rate := getRate(kind)

	return max(rate-elapsed, 0)
}

func getRate(kind Kind) time.Duration {
	if kind == Write {
		return writeRate
	}
	return readRate
}
