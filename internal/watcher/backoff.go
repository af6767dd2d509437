package watcher

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// computeBackoff returns the delay before a job's nth retry:
// min(initial * 2^retries, max), with no jitter in the baseline design
// (RandomizationFactor: 0). cenkalti/backoff/v5's ExponentialBackOff
// already implements exactly this curve; stepping it `retries` times
// from a fresh Reset is simpler than reimplementing the cap by hand.
func computeBackoff(retries int, initial, max time.Duration) time.Duration {
	b := backoff.ExponentialBackOff{
		InitialInterval:     initial,
		MaxInterval:         max,
		Multiplier:          2,
		RandomizationFactor: 0,
	}
	b.Reset()

	delay := initial
	for i := 0; i <= retries; i++ {
		next := b.NextBackOff()
		if next == backoff.Stop {
			return max
		}
		delay = next
	}
	if delay > max {
		delay = max
	}
	return delay
}
