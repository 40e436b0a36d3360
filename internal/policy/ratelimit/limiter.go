// Package ratelimit implements the process-wide API call gate shared by every fetch.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/gsc-crawl-errors/internal/metrics"
	"golang.org/x/time/rate"
)

// DefaultPerMinute is the call budget used by the report fetch path.
const DefaultPerMinute = 200

// Config holds rate limiter configuration.
type Config struct {
	// PerMinute is the number of calls permitted per Window. Zero or less disables limiting.
	PerMinute int
	// Window defaults to one minute.
	Window time.Duration
}

// Limiter releases one token every Window/PerMinute with a burst of one, so
// calls are spaced evenly rather than admitted in bursts at a window boundary.
// The underlying rate.Limiter is mutex-guarded and safe for concurrent callers.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	if cfg.PerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	interval := window / time.Duration(cfg.PerMinute)
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until a call is permitted, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitWait(waited)
	}
	return nil
}

// Interval reports the enforced spacing between calls; zero means unlimited.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
