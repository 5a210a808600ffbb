package cleanup

import (
	"math/rand"
	"time"
)

const (
	// DefaultMaxAttempts is the default number of failed deletes before a reference is dropped.
	DefaultMaxAttempts = 8

	// JitterFactor is the ±fraction of jitter applied to delays.
	JitterFactor = 0.2

	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 6 * time.Hour
	retryGrowth    = 4
)

// NextRetryDelay returns the wait before the next delete attempt.
// attemptCount is the number of failures so far minus one, so the first
// retry waits about 30 s; each further failure multiplies the wait by 4 up
// to 6 h. The result carries ±20% jitter so a burst of failures spreads out.
func NextRetryDelay(attemptCount int) time.Duration {
	base := baseRetryDelay
	for i := 0; i < attemptCount && base < maxRetryDelay; i++ {
		base *= retryGrowth
	}
	if base > maxRetryDelay {
		base = maxRetryDelay
	}

	jitter := (rand.Float64()*2 - 1) * JitterFactor * float64(base)
	return base + time.Duration(jitter)
}

// IsExhausted reports whether a reference has used up its attempts.
func IsExhausted(attemptCount, maxAttempts int) bool {
	return attemptCount >= maxAttempts
}
