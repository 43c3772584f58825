package exchange

import (
	"math/rand"
	"time"
)

// Backoff describes the capped exponential reconnect schedule of streaming feeds.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // fraction of the wait randomized in both directions, 0..1
}

// DefaultBackoff starts at one second and caps at thirty.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 1.8,
		Jitter: 0.2,
	}
}

// Next returns the wait before reconnect attempt (1-based). Jitter never pushes the wait past Max.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	max := b.Max
	if max < min {
		max = min
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}

	wait := min
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}

	if b.Jitter <= 0 {
		return wait
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	wait = wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
	if wait > max {
		wait = max
	}
	return wait
}
