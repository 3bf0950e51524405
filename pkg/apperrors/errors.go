// Package apperrors defines the error taxonomy shared across the engine.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a schema, table, or cached entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedBackend indicates a datasource type with no registered engine.
	ErrUnsupportedBackend = errors.New("unsupported datasource type")
	// ErrCredentialsKeyMismatch indicates credentials were encrypted with a different key.
	ErrCredentialsKeyMismatch = errors.New("credentials were encrypted with a different key")
)

// FieldError describes a single invalid configuration field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ConfigError reports all structural problems with a datasource configuration
// at once, so callers can surface every invalid field in a single response.
type ConfigError struct {
	Fields []FieldError
}

func (e *ConfigError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid configuration"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// ConnectionError wraps a transport or authentication failure against a backend.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// UnsafeQueryError indicates generated SQL matched the safety denylist.
type UnsafeQueryError struct {
	Pattern string
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("query rejected: contains disallowed pattern %q", e.Pattern)
}

// GenerationError wraps a completion-service failure or malformed response.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("SQL generation failed (%s): %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("SQL generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ExecutionError wraps a backend execution failure. The native error text is
// preserved so it can be fed back to the model on retry.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ContextError indicates prompt context could not be assembled (no tables
// selected, datasource unreachable during introspection, etc).
type ContextError struct {
	Err error
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("context build failed: %v", e.Err)
}

func (e *ContextError) Unwrap() error { return e.Err }

// IsRetryable reports whether an error may be recovered by another
// generate-screen-execute attempt. Configuration, connection, and lookup
// failures are fatal for the request; everything in the generation loop
// (unsafe SQL, completion failures, execution failures) is retryable up to
// the retry budget.
func IsRetryable(err error) bool {
	var unsafeErr *UnsafeQueryError
	var genErr *GenerationError
	var execErr *ExecutionError
	return errors.As(err, &unsafeErr) || errors.As(err, &genErr) || errors.As(err, &execErr)
}
