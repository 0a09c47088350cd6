// Package retry implements the retry policy applied around remote calls.
// Throttled failures back off exponentially, transient failures retry
// after a flat short delay and anything else is returned immediately.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Class tells the policy how to treat a failure.
type Class int

const (
	Permanent Class = iota
	Throttled
	Transient
)

func (c Class) String() string {
	switch c {
	case Throttled:
		return "throttled"
	case Transient:
		return "transient"
	default:
		return "permanent"
	}
}

// Classifier maps an error to its retry class.
type Classifier func(error) Class

// Policy holds the attempt budget and backoff schedule.
type Policy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	ThrottledJitter time.Duration
	TransientJitter time.Duration
	Classify        Classifier

	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, class Class, delay time.Duration, err error)

	jitter func() float64
}

// DefaultPolicy returns five attempts starting at two seconds.
func DefaultPolicy(classify Classifier) *Policy {
	return &Policy{
		MaxAttempts:     5,
		BaseDelay:       2 * time.Second,
		ThrottledJitter: time.Second,
		TransientJitter: 2 * time.Second,
		Classify:        classify,
	}
}

// Delay returns the wait before the retry following failed attempt n (0-based).
func (p *Policy) Delay(n int, class Class) time.Duration {
	switch class {
	case Throttled:
		return p.BaseDelay*time.Duration(1<<uint(n)) + p.jitterFor(p.ThrottledJitter)
	case Transient:
		return p.BaseDelay + p.jitterFor(p.TransientJitter)
	default:
		return 0
	}
}

// Do runs fn until it succeeds, fails permanently, exhausts the attempt
// budget or ctx is done. The last error from fn is returned.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		attempt int
		lastErr error
		class   Class
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= maxAttempts {
			return 0, true
		}
		delay := p.Delay(attempt-1, class)
		if p.OnRetry != nil {
			p.OnRetry(attempt, class, delay, lastErr)
		}
		return delay, false
	})

	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		class = p.classify(err)
		if class == Permanent {
			return err
		}
		return goretry.RetryableError(err)
	})
}

func (p *Policy) classify(err error) Class {
	if p.Classify == nil {
		return Permanent
	}
	if errors.Is(err, context.Canceled) {
		return Permanent
	}
	return p.Classify(err)
}

func (p *Policy) jitterFor(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	r := rand.Float64
	if p.jitter != nil {
		r = p.jitter
	}
	return time.Duration(r() * float64(limit))
}
