package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine operations.
var (
	// ErrEmptyID indicates registration without an experience id.
	ErrEmptyID = errors.New("experience id is empty")

	// ErrIDMismatch indicates the registration key differs from Experience.ID.
	ErrIDMismatch = errors.New("registration id does not match experience id")

	// ErrUnknownType indicates an experience type outside banner/modal/inline.
	ErrUnknownType = errors.New("unknown experience type")

	// ErrInvalidPattern indicates targeting.url.matches failed to compile.
	ErrInvalidPattern = errors.New("invalid url pattern")

	// ErrInvalidExpression indicates targeting.expression failed to compile.
	ErrInvalidExpression = errors.New("invalid targeting expression")

	// ErrInvalidWindow indicates frequency.per is not hour, day or week.
	ErrInvalidWindow = errors.New("invalid frequency window")

	// ErrInvalidMax indicates frequency.max is not a positive integer.
	ErrInvalidMax = errors.New("frequency max must be positive")

	// ErrNotFound indicates an unknown experience id.
	ErrNotFound = errors.New("experience not found")

	// ErrReservedEvent indicates a host tried to emit an engine-owned event.
	ErrReservedEvent = errors.New("event type is emitted by the engine only")

	// ErrUnknownEvent indicates an event type outside shown/action/dismissed.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrStorageUnavailable indicates the key-value collaborator failed.
	ErrStorageUnavailable = errors.New("frequency storage unavailable")
)

// ConfigError records why an experience was disabled at registration.
// Unwraps to one of the sentinel errors above.
type ConfigError struct {
	ExperienceID string
	Field        string // e.g. "targeting.url.matches"
	Err          error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("experience %s: %v", e.ExperienceID, e.Err)
	}
	return fmt.Sprintf("experience %s: %s: %v", e.ExperienceID, e.Field, e.Err)
}

// Unwrap exposes the underlying sentinel for errors.Is.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
