package resilience

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for resilience operations.
var (
	// ErrTimeout is returned when a single attempt exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrCancelled is returned when the caller's context is cancelled at any
	// suspension point. It is never classified and never retried.
	ErrCancelled = errors.New("resilience: execution cancelled")

	// ErrRetryBudgetExhausted is returned when retry attempts run out.
	ErrRetryBudgetExhausted = errors.New("resilience: retry budget exhausted")

	// ErrConfiguration is returned for invalid pipeline configuration.
	ErrConfiguration = errors.New("resilience: invalid configuration")

	// ErrNilOperation is returned when Execute is called without an operation.
	ErrNilOperation = errors.New("resilience: operation is nil")
)

// ConfigurationError describes an invalid strategy configuration.
type ConfigurationError struct {
	Strategy string
	Field    string
	Reason   string
	Err      error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("resilience: invalid configuration")
	if e.Strategy != "" {
		b.WriteString(" for ")
		b.WriteString(e.Strategy)
	}
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(" ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports ErrConfiguration as a match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(strategy, field, reason string) error {
	return &ConfigurationError{Strategy: strategy, Field: field, Reason: reason}
}

// RetryExhaustedError is returned when the retry strategy gives up on a
// retryable fault. It unwraps to both ErrRetryBudgetExhausted and the fault
// from the final attempt.
type RetryExhaustedError struct {
	// Attempts is the total number of attempts performed.
	Attempts int

	// Last is the fault from the final attempt.
	Last error

	// History holds the faults of every attempt in order, when the retry
	// strategy was configured to keep it.
	History []error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("resilience: retry budget exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() []error {
	return []error{ErrRetryBudgetExhausted, e.Last}
}

// cancelled builds the terminal cancellation error for ctx cause.
func cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// IsCancelled reports whether err is a pipeline cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsTimeout reports whether err is, or wraps, an attempt timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
