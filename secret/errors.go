package secret

import "errors"

var (
	// ErrMissingEnv indicates ${VAR} referenced an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrInvalidRef indicates a malformed secret reference.
	ErrInvalidRef = errors.New("secret: invalid reference")

	// ErrProviderNotRegistered indicates a reference named an unknown provider.
	ErrProviderNotRegistered = errors.New("secret: provider not registered")

	// ErrNotFound indicates the provider has no value for the reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrEmptySecret indicates a strict resolver received an empty value.
	ErrEmptySecret = errors.New("secret: empty value")
)
