// Package ratelimit provides the process-wide request limiter shared by
// every call to the remote spreadsheet.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between requests plus a per-minute
// request budget. Acquire blocks until both allow the next request.
type Limiter struct {
	interval *rate.Limiter
	budget   *rate.Limiter
	observe  func(time.Duration)
}

// New creates a limiter. A non-positive minInterval or perMinute
// disables that constraint.
func New(minInterval time.Duration, perMinute int) *Limiter {
	l := &Limiter{
		interval: rate.NewLimiter(rate.Inf, 1),
		budget:   rate.NewLimiter(rate.Inf, 1),
	}
	if minInterval > 0 {
		l.interval = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	if perMinute > 0 {
		l.budget = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return l
}

// Unlimited returns a limiter that never waits.
func Unlimited() *Limiter {
	return New(0, 0)
}

// OnWait registers a callback receiving the time spent blocked in Acquire.
func (l *Limiter) OnWait(fn func(time.Duration)) *Limiter {
	l.observe = fn
	return l
}

// Acquire blocks until a request may be sent or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.budget.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit budget: %w", err)
	}
	if err := l.interval.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit interval: %w", err)
	}
	if l.observe != nil {
		l.observe(time.Since(start))
	}
	return nil
}
