package transport

import (
	"math/rand"
	"time"
)

// DefaultMaxAttempts bounds per-chunk retry attempts before a download
// fails outright.
const DefaultMaxAttempts = 10

const (
	baseBackoff = 1000 * time.Millisecond
	maxBackoff  = 30 * time.Second
	jitterFrac  = 0.10
)

// RetryPolicy computes exponential backoff with up to 10% jitter, bounded
// by MaxAttempts.
type RetryPolicy struct {
	MaxAttempts int
	Rand        *rand.Rand // nil uses a package-level source
}

// NewRetryPolicy builds a policy with recommended defaults.
func NewRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts}
}

// Backoff returns the delay before attempt n (1-indexed): min(1000*2^(n-1),
// 30000)ms, plus up to 10% jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	shift := attempt - 1
	if shift > 30 {
		shift = 30 // guard against overflow for pathological attempt counts
	}

	delay := baseBackoff * time.Duration(uint64(1)<<uint(shift))
	if delay > maxBackoff {
		delay = maxBackoff
	}

	jitter := time.Duration(float64(delay) * jitterFrac * p.jitterSource())

	return delay + jitter
}

func (p RetryPolicy) jitterSource() float64 {
	if p.Rand != nil {
		return p.Rand.Float64()
	}

	return rand.Float64() //nolint:gosec // jitter, not security-sensitive
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}

	return p.MaxAttempts
}
