// Package resilience retries remote calls with capped exponential backoff.
package resilience

import (
	"math/rand/v2"
	"time"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
	defaultMaxDelay = 10 * time.Second
	defaultJitter   = 0.25
)

// Policy bounds the retries of one remote call.
type Policy struct {
	// Attempts is the total number of tries including the first.
	// 1 disables retry.
	Attempts int

	// Backoff is the wait before the second try. It doubles after every
	// further failure up to MaxDelay.
	Backoff  time.Duration
	MaxDelay time.Duration

	// Jitter varies each wait by up to this fraction of itself.
	Jitter float64

	// Retryable reports whether err deserves another try. Nil means IsTransient.
	Retryable func(err error) bool

	// OnRetry runs before each wait with the number of the failed attempt.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy tries three times, waiting 500ms then 1s, with 25% jitter.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: defaultAttempts,
		Backoff:  defaultBackoff,
		MaxDelay: defaultMaxDelay,
		Jitter:   defaultJitter,
	}
}

// FromConfig builds a Policy from config values. Non-positive values keep
// the defaults.
func FromConfig(attempts, backoffMs int) Policy {
	p := DefaultPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	if backoffMs > 0 {
		p.Backoff = time.Duration(backoffMs) * time.Millisecond
	}
	return p
}

// Always is a Retryable that retries every error.
func Always(error) bool { return true }

// Delay returns the wait after failed attempt n (1-based), before jitter.
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()
	d := p.Backoff
	for i := 1; i < n && d < p.MaxDelay; i++ {
		d *= 2
	}
	return min(d, p.MaxDelay)
}

func (p Policy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * p.Jitter * float64(d)
	return max(d+time.Duration(spread), 0)
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultBackoff
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.Backoff {
		p.MaxDelay = p.Backoff
	}
	return p
}
