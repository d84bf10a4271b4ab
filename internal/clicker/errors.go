package clicker

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid click config")
	ErrActuation     = errors.New("actuation failed")
	ErrHandleClosed  = errors.New("scheduler handle closed")
)

// ConfigError names the offending field. It matches ErrInvalidConfig via errors.Is.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid click config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ActuationError wraps a failure returned by an Actuator.
// It matches both ErrActuation and the underlying error.
type ActuationError struct {
	Op     string
	Button Button
	Err    error
}

func (e *ActuationError) Error() string {
	if e.Op == "init" {
		return fmt.Sprintf("failed to initialize actuator: %v", e.Err)
	}
	return fmt.Sprintf("failed to %s %s button: %v", e.Op, e.Button, e.Err)
}

func (e *ActuationError) Unwrap() []error { return []error{ErrActuation, e.Err} }
