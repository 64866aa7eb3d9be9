package retry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/iapkit/pkg/retry"
)

func TestLinearBackoff(t *testing.T) {
	t.Parallel()

	b := retry.CatalogRefresh()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{29, 290 * time.Second},
		{30, 300 * time.Second},
		{31, 300 * time.Second},
		{1 << 40, 300 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.NextInterval(tt.attempt), "attempt %d", tt.attempt)
	}

	assert.Equal(t, 3*time.Second, retry.LinearBackoff{}.NextInterval(3))
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	b := retry.ExponentialBackoff{InitialInterval: time.Second, MaxInterval: 10 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, b.NextInterval(1))
	assert.Equal(t, 4*time.Second, b.NextInterval(3))
	assert.Equal(t, 10*time.Second, b.NextInterval(10))

	jittered := retry.DefaultBackoff()
	for range 50 {
		d := jittered.NextInterval(1)
		assert.GreaterOrEqual(t, d, 450*time.Millisecond)
		assert.LessOrEqual(t, d, 550*time.Millisecond)
	}
}

func TestFixedBackoff(t *testing.T) {
	t.Parallel()

	b := retry.FixedBackoff{Interval: time.Millisecond}
	assert.Equal(t, time.Duration(0), b.NextInterval(0))
	assert.Equal(t, time.Millisecond, b.NextInterval(7))
}

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	cb := retry.NewCircuitBreaker(2, 2, time.Minute)
	cb.SetClock(func() time.Time { return now })

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, retry.CircuitClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, retry.CircuitOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, retry.CircuitHalfOpen, cb.State())
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.Equal(t, retry.CircuitOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, retry.CircuitHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, retry.CircuitClosed, cb.State())

	cb.RecordFailure()
	cb.Reset()
	assert.Equal(t, retry.CircuitClosed, cb.State())
	assert.Equal(t, "half-open", retry.CircuitHalfOpen.String())
}
