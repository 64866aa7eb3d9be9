package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy computes the delay before a retry attempt.
// Attempt starts at 1. Implementations must be safe for concurrent use.
type BackoffStrategy interface {
	NextInterval(attempt int) time.Duration
}

// LinearBackoff returns min(Interval*attempt, MaxInterval).
type LinearBackoff struct {
	Interval    time.Duration
	MaxInterval time.Duration
}

func (l LinearBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	step := l.Interval
	if step <= 0 {
		step = time.Second
	}
	limit := l.MaxInterval
	if limit <= 0 {
		limit = 30 * time.Second
	}

	// guard the multiplication against overflow for huge attempt counts
	if int64(attempt) > int64(limit/step) {
		return limit
	}
	return min(step*time.Duration(attempt), limit)
}

// ExponentialBackoff returns Initial*Multiplier^(attempt-1), jittered by
// ±JitterFactor and capped at MaxInterval.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial <= 0 {
		initial = time.Second
	}
	limit := e.MaxInterval
	if limit <= 0 {
		limit = 30 * time.Second
	}
	mult := e.Multiplier
	if mult <= 0 {
		mult = 2
	}

	interval := float64(initial) * math.Pow(mult, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	if interval > float64(limit) {
		return limit
	}
	return time.Duration(interval)
}

// FixedBackoff always waits Interval.
type FixedBackoff struct {
	Interval time.Duration
}

func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// CatalogRefresh is the delay policy for catalog refresh retries:
// 10s per consecutive failure, never more than five minutes.
func CatalogRefresh() LinearBackoff {
	return LinearBackoff{Interval: 10 * time.Second, MaxInterval: 5 * time.Minute}
}

// DefaultBackoff is a jittered exponential policy for network retries.
func DefaultBackoff() BackoffStrategy {
	return ExponentialBackoff{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
		JitterFactor:    0.1,
	}
}
