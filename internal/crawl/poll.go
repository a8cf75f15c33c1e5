package crawl

import (
	"context"
	"math/rand"
	"time"
)

// pollUntil runs fn up to attempts times, pausing interval between tries,
// and reports whether fn ever returned true. Expected "not yet" conditions
// are results, not errors; exhausting the attempts means "did not happen".
func pollUntil(ctx context.Context, interval time.Duration, attempts int, fn func() bool) bool {
	for i := 0; i < attempts; i++ {
		if !pause(ctx, interval) {
			return false
		}
		if fn() {
			return true
		}
	}
	return false
}

// pause sleeps for delay, returning false early when ctx is done.
func pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// humanPause sleeps a random duration in [min, max] to emulate organic
// pacing between navigations.
func humanPause(ctx context.Context, rng *rand.Rand, min, max time.Duration) bool {
	delay := min
	if span := max - min; span > 0 {
		delay += time.Duration(rng.Int63n(int64(span) + 1))
	}
	return pause(ctx, delay)
}
