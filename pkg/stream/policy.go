package stream

import (
	"math"
	"math/rand/v2"
	"time"
)

// DefaultMaxDelay caps ExponentialBackoff when the configured maximum is unset.
const DefaultMaxDelay = time.Minute

// ReconnectPolicy decides how long to wait before reconnect attempt n
// (starting at 0). The attempt count resets once a connection subscribes.
type ReconnectPolicy interface {
	NextDelay(attempt int) time.Duration
}

// FixedDelay waits the same duration before every attempt.
type FixedDelay time.Duration

func (d FixedDelay) NextDelay(int) time.Duration { return time.Duration(d) }

// ExponentialBackoff doubles the delay with every failed attempt, up to Max.
// A zero Max leaves the delay uncapped; doubling saturates instead of
// overflowing.
// Jitter in [0, 1] randomly shortens each delay by up to that fraction.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	// rand returns a value in [0, 1); nil means math/rand.
	rand func() float64
}

func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.Base
	for i := 0; i < attempt && d > 0; i++ {
		if b.Max > 0 && d >= b.Max {
			break
		}
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		r := b.rand
		if r == nil {
			r = rand.Float64
		}
		j := min(b.Jitter, 1)
		d -= time.Duration(float64(d) * j * r())
	}
	return max(d, 0)
}
