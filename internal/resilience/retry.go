package resilience

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds configuration for retrying provider calls
type RetryConfig struct {
	MaxAttempts       int           // Maximum number of attempts including the first
	InitialBackoff    time.Duration // Backoff before the first retry
	MaxBackoff        time.Duration // Upper bound for any single backoff
	BackoffMultiplier float64       // Multiplier for exponential growth
	Jitter            bool          // Add up to 25% random jitter to each backoff
}

// DefaultRetryConfig returns the retry configuration used for synthesis calls
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func() error

// IsRetryableError decides whether a failure is worth another attempt
type IsRetryableError func(error) bool

// Retry executes fn until it succeeds, a non-retryable error occurs, or the
// attempt budget is exhausted. The last error is returned.
func Retry(fn RetryableFunc, config *RetryConfig, isRetryable IsRetryableError) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return err
		}

		// No sleep after the final attempt
		if attempt < config.MaxAttempts-1 {
			time.Sleep(backoffFor(attempt, config))
		}
	}

	return lastErr
}

// backoffFor calculates the sleep before retrying after the given attempt
func backoffFor(attempt int, config *RetryConfig) time.Duration {
	backoff := time.Duration(float64(config.InitialBackoff) * math.Pow(config.BackoffMultiplier, float64(attempt)))
	if backoff > config.MaxBackoff {
		backoff = config.MaxBackoff
	}

	if config.Jitter {
		backoff += time.Duration(rand.Float64() * 0.25 * float64(backoff))
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return backoff
}

// IsRetryableNetworkError reports whether err looks like a transient transport
// failure. Provider-level rejections (bad credential, quota) are not listed
// here and must never be retried.
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	transient := []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"network is unreachable",
		"no route to host",
		"deadline exceeded",
		"timeout",
		"i/o timeout",
		"EOF",
	}

	for _, substr := range transient {
		if strings.Contains(errStr, substr) {
			return true
		}
	}

	return false
}
