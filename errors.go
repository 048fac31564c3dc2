package stripemirror

import (
	"errors"
	"fmt"
)

// Common errors returned by stripemirror.
var (
	// ErrConfiguration is matched by every *ConfigError.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrForbiddenWrite is returned when a create or update targets the
	// production account. Production is read-only.
	ErrForbiddenWrite = errors.New("forbidden: write to production account")

	// ErrMissingDependency is returned when a referenced entity has no
	// mapping yet (e.g. a price whose product was not copied).
	ErrMissingDependency = errors.New("missing dependency mapping")

	// ErrUnknownResourceKind is returned for a kind outside the supported set.
	ErrUnknownResourceKind = errors.New("unknown resource kind")

	// ErrSnapshotNotFound is returned when a mapping snapshot does not exist.
	ErrSnapshotNotFound = errors.New("mapping snapshot not found")
)

// ConfigError is returned when configuration validation fails.
// Extractable via errors.As(); matches ErrConfiguration via errors.Is().
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// APIError is returned when a Stripe API call fails.
// Extractable via errors.As(). Supports Unwrap().
type APIError struct {
	Operation  string
	StatusCode int
	Type       string
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("stripe: %s failed: %v", e.Operation, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("stripe: %s failed (status %d, %s): %s", e.Operation, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("stripe: %s failed (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }
