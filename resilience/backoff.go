package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential
)

// String returns the string representation of the strategy.
func (b BackoffStrategy) String() string {
	switch b {
	case BackoffConstant:
		return "constant"
	case BackoffLinear:
		return "linear"
	case BackoffExponential:
		return "exponential"
	default:
		return "unknown"
	}
}

// ParseBackoffStrategy parses "constant", "linear" or "exponential".
func ParseBackoffStrategy(s string) (BackoffStrategy, bool) {
	switch s {
	case "constant", "":
		return BackoffConstant, true
	case "linear":
		return BackoffLinear, true
	case "exponential":
		return BackoffExponential, true
	default:
		return BackoffConstant, false
	}
}

// BackoffDelay returns the wait before the retry that follows attempt
// (0-based), without jitter:
//
//	constant:    d
//	linear:      d * (attempt+1)
//	exponential: d * multiplier^attempt
//
// A positive maxDelay caps the result.
func BackoffDelay(strategy BackoffStrategy, base time.Duration, multiplier float64, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	var delay time.Duration
	switch strategy {
	case BackoffLinear:
		delay = base * time.Duration(attempt+1)
	case BackoffExponential:
		f := float64(base) * math.Pow(multiplier, float64(attempt))
		if f >= math.MaxInt64 || math.IsInf(f, 0) || math.IsNaN(f) {
			delay = time.Duration(math.MaxInt64)
		} else {
			delay = time.Duration(f)
		}
	default:
		delay = base
	}

	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// withJitter adds up to 25% random jitter.
func withJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	// #nosec G404 -- jitter is non-cryptographic timing variance.
	jitter := time.Duration(rand.Int64N(int64(delay / 4)))
	if delay > time.Duration(math.MaxInt64)-jitter {
		return delay
	}
	return delay + jitter
}
