package config

import "errors"

var (
	// ErrRead indicates the config or .env file could not be read.
	ErrRead = errors.New("config: read failed")

	// ErrInvalid indicates a setting failed validation.
	ErrInvalid = errors.New("config: invalid")
)
