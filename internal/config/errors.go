package config

import (
	"errors"
	"fmt"
)

// Configuration errors.
var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingCredentials is returned when a command needs the remote API
	// but no client credentials are configured.
	ErrMissingCredentials = errors.New("reddit client id and secret are required")
)

// ValidationError describes one invalid field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: field %q with value %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// LoadError is returned when the config file exists but cannot be read.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load config from %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
