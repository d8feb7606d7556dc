package model

import (
	"fmt"
	"strings"
)

// FieldErrorReason classifies why a field was rejected.
type FieldErrorReason string

const (
	// FieldMissing means the field was absent from an imported record.
	FieldMissing FieldErrorReason = "FIELD_MISSING"
	// FieldRequired means the field was present but empty.
	FieldRequired FieldErrorReason = "FIELD_REQUIRED"
	// FieldTooLong means the field exceeded its character limit.
	FieldTooLong FieldErrorReason = "FIELD_TOO_LONG"
	// OutOfBounds means an identifier was used at the wrong point of the
	// entity lifecycle (negative id on import, inserting an already-inserted
	// key, saving or loading a key that does not exist).
	OutOfBounds FieldErrorReason = "OUT_OF_BOUNDS"
)

// FieldError is a single field-level validation or lifecycle failure.
type FieldError struct {
	Field  string
	Reason FieldErrorReason
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is reports whether target is a FieldError with the same field and reason.
// An empty field or reason on the target acts as a wildcard, so callers can
// match "any FIELD_TOO_LONG" with errors.Is.
func (e *FieldError) Is(target error) bool {
	t, ok := target.(*FieldError)
	if !ok {
		return false
	}
	return (t.Field == "" || t.Field == e.Field) && (t.Reason == "" || t.Reason == e.Reason)
}

// ErrKeyNotFound is the lifecycle error for a lookup that matched no row.
// The original system reports this as an out-of-bounds access on the key id.
var ErrKeyNotFound = &FieldError{Field: "api_key_id", Reason: OutOfBounds}

// ValidationErrors aggregates every field error from one submission so an
// admin sees all problems in a single round-trip instead of fixing them
// one at a time.
type ValidationErrors []*FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the individual field errors to errors.Is and errors.As.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// ErrOrNil returns the aggregate as an error, or nil when empty.
func (v ValidationErrors) ErrOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
