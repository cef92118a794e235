package stream

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedDelay(t *testing.T) {
	p := FixedDelay(5 * time.Second)
	for _, attempt := range []int{0, 1, 10, 1000} {
		assert.Equal(t, 5*time.Second, p.NextDelay(attempt))
	}
}

func TestExponentialBackoff(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Max: 30 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{500, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterNeverExceedsMax(t *testing.T) {
	p := ExponentialBackoff{Base: 100 * time.Millisecond, Max: 3 * time.Second, Jitter: 0.5}
	for attempt := 0; attempt < 64; attempt++ {
		d := p.NextDelay(attempt)
		assert.LessOrEqual(t, d, p.Max)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
	}

	fixed := ExponentialBackoff{Base: time.Second, Max: time.Minute, Jitter: 0.5, rand: func() float64 { return 0.5 }}
	assert.Equal(t, 750*time.Millisecond, fixed.NextDelay(0))
}

func TestExponentialBackoffUncapped(t *testing.T) {
	p := ExponentialBackoff{Base: 5 * time.Second}
	assert.Equal(t, 10*time.Second, p.NextDelay(1))

	prev := time.Duration(0)
	for attempt := 0; attempt < 100; attempt++ {
		d := p.NextDelay(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}
	assert.Equal(t, time.Duration(math.MaxInt64), p.NextDelay(40))

	jittered := ExponentialBackoff{Base: 5 * time.Second, Jitter: 1, rand: func() float64 { return 0.999 }}
	assert.Greater(t, jittered.NextDelay(63), time.Duration(0))
}
