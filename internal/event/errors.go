package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for event types and instances.
var (
	// ErrDuplicateType is returned when a type name is declared twice.
	ErrDuplicateType = errors.New("event type already declared")

	// ErrRegistrySealed is returned when declaring into a sealed registry.
	ErrRegistrySealed = errors.New("event type registry is sealed")

	// ErrUnknownType is returned when a type name is not registered.
	ErrUnknownType = errors.New("unknown event type")

	// ErrSchema is matched by every *SchemaError.
	ErrSchema = errors.New("event schema violation")

	// ErrFieldNotSet is returned when reading a field that was never set.
	ErrFieldNotSet = errors.New("field has not been set")

	// ErrTypeMismatch is returned when combining events of different types.
	ErrTypeMismatch = errors.New("event type mismatch")

	// ErrMergeConflict is matched by every *MergeConflictError.
	ErrMergeConflict = errors.New("merge conflict")
)

// SchemaError reports a field assignment that violates the declared schema.
type SchemaError struct {
	// Type is the event type name.
	Type string

	// Field is the offending field name.
	Field string

	// Message describes the violation.
	Message string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Type, e.Field, e.Message)
}

// Is allows errors.Is to match SchemaError with ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// MergeConflictError reports two events binding a shared field to different values.
type MergeConflictError struct {
	Type  string
	Field string
	Left  any
	Right any
}

// Error implements the error interface.
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("cannot merge %s, conflicting values of %s: %v and %v", e.Type, e.Field, e.Left, e.Right)
}

// Is allows errors.Is to match MergeConflictError with ErrMergeConflict.
func (e *MergeConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}
