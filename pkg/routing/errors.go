package routing

import (
	"errors"
	"fmt"

	"github.com/dd0wney/qroute/pkg/noise"
)

// Common sentinel errors
var (
	ErrShapeMismatch    = noise.ErrShapeMismatch
	ErrInvalidMapping   = errors.New("mapping is not a permutation of the device nodes")
	ErrCircuitTooWide   = errors.New("circuit has more qubits than the device has nodes")
	ErrUnsupportedGate  = errors.New("operation acts on more than two qubits")
	ErrInvalidCircuit   = errors.New("circuit has a malformed gate")
	ErrNilTopology      = errors.New("topology is nil")
	ErrSnapshotMismatch = errors.New("snapshot does not match environment")
)

// Error provides structured error information for environment operations.
type Error struct {
	Op      string // Operation that failed (e.g., "new", "set_circuit")
	Field   string // Offending input (e.g., "initial_mapping")
	Cause   error  // Underlying error
	Context string // Additional context
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Context != "":
		return fmt.Sprintf("routing %s (field %s, %s): %v", e.Op, e.Field, e.Context, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("routing %s (field %s): %v", e.Op, e.Field, e.Cause)
	case e.Context != "":
		return fmt.Sprintf("routing %s (%s): %v", e.Op, e.Context, e.Cause)
	}
	return fmt.Sprintf("routing %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error's cause.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// ErrorBuilder provides a fluent interface for building Errors.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new error builder with the given operation.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: Error{Op: op}}
}

// Field sets the offending input.
func (b *ErrorBuilder) Field(name string) *ErrorBuilder {
	b.err.Field = name
	return b
}

// Context sets additional context information.
func (b *ErrorBuilder) Context(format string, args ...any) *ErrorBuilder {
	b.err.Context = fmt.Sprintf(format, args...)
	return b
}

// Cause sets the underlying error cause.
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Build returns the constructed Error.
func (b *ErrorBuilder) Build() *Error {
	return &b.err
}

// Err returns the error as an error interface.
func (b *ErrorBuilder) Err() error {
	return &b.err
}
