package httpop

import (
	"errors"
	"fmt"
)

var (
	// ErrClientTimeout indicates the http.Client timeout fired before the
	// attempt context was done.
	ErrClientTimeout = errors.New("httpop: client timeout exceeded")

	// ErrToken indicates the token source failed.
	ErrToken = errors.New("httpop: token unavailable")

	// ErrInvalidBaseURL indicates Options.BaseURL is not an absolute URL.
	ErrInvalidBaseURL = errors.New("httpop: invalid base URL")

	// ErrUnknownMode indicates an unsupported client mode.
	ErrUnknownMode = errors.New("httpop: unknown client mode")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpop: unexpected status %s", e.Status)
}

// Retryable reports whether the status signals a transient server condition.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
