package ledger

import (
	"errors"
	"fmt"
)

// ValidationError rejects an operation before any write: unbalanced entries,
// missing fields, invalid enum values, duplicate codes.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError marks an unknown account/entry/grant/currency/rate reference.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	if e.Ref == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.Ref)
}

// NotFound builds a NotFoundError for the given entity and reference.
func NotFound(entity, ref string) error {
	return &NotFoundError{Entity: entity, Ref: ref}
}

// StateError rejects a lifecycle violation: posting an already-posted entry,
// deleting a posted entry, deactivating an account that is still referenced.
// The ledger is left unchanged.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string { return "state: " + e.Reason }

// Statef builds a StateError.
func Statef(format string, args ...any) error {
	return &StateError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsState reports whether err is a StateError.
func IsState(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}
