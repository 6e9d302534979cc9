package app

import (
	"math/rand"
	"time"
)

// Default backoff configuration values.
const (
	defaultBackoffInitial = 2 * time.Second
	defaultBackoffMax     = 2 * time.Minute
)

// backoff implements exponential backoff with jitter for consecutive
// fetch failures.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Next returns the current backoff duration with ±20% jitter and
// increases the base for the next call.
func (b *backoff) Next() time.Duration {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}
