package scheduler

import "time"

// backoff is a per-watcher exponential delay: min, 2*min, 4*min ... capped at
// max. Not safe for concurrent use; each watcher owns one.
type backoff struct {
	min time.Duration
	max time.Duration

	attempt int
}

func newBackoff(min, max time.Duration) *backoff {
	return &backoff{min: min, max: max}
}

// Next returns the delay for the current attempt and advances the counter.
func (b *backoff) Next() time.Duration {
	d := b.min << b.attempt
	if d > b.max || d < b.min { // d < min catches shift overflow
		d = b.max
	}
	b.attempt++
	return d
}

func (b *backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of consecutive failures so far.
func (b *backoff) Attempt() int {
	return b.attempt
}
