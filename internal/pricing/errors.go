package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVehicle marks vehicle profile validation failures.
	ErrInvalidVehicle = errors.New("pricing: invalid vehicle profile")
	// ErrInvalidRules marks pricing rules rejected on edit.
	ErrInvalidRules = errors.New("pricing: invalid pricing rules")
	// ErrInvariantViolation indicates an internal defect: the engine produced
	// an output that breaks its own guarantees.
	ErrInvariantViolation = errors.New("pricing: suggestion invariant violated")
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field  string
	Reason string
	kind   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.kind
}

func vehicleError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, kind: ErrInvalidVehicle}
}

func rulesError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, kind: ErrInvalidRules}
}

func invariantError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}
