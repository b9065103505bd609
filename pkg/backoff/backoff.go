// Package backoff provides exponential backoff calculation.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
	Jitter  bool          // add up to 25% random jitter
}

// Exponential calculates exponential backoff for a given attempt.
// Attempt 1 returns initial, attempt 2 returns initial*2, etc.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := 100 * time.Millisecond
	maxBackoff := 5 * time.Second
	jitter := false
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxBackoff = cfg.Max
		}
		jitter = cfg.Jitter
	}

	if attempt < 1 {
		return initial
	}
	backoff := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	d := time.Duration(backoff)
	if jitter && d > 0 {
		// Spread retries out so callers do not hammer a recovering
		// destination in lockstep.
		if maxJitter := d / 4; maxJitter > 0 {
			d += time.Duration(rand.Int63n(int64(maxJitter)))
			if d > maxBackoff {
				d = maxBackoff
			}
		}
	}
	return d
}
