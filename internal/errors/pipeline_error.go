// Package errors provides standardized error types for the exploration pipeline.
// Every failure surfaced to a caller is a PipelineError carrying a Kind, so
// hosts can map it to a non-fatal warning with errors.Is.
package errors

import (
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindInternal marks failures that indicate a bug rather than bad input.
	KindInternal Kind = iota
	// KindSourceNotFound marks a missing backing resource for the dataset.
	KindSourceNotFound
	// KindMissingColumn marks a reference to a column the dataset does not have.
	KindMissingColumn
	// KindInvalidParameter marks a caller parameter that violates its contract.
	KindInvalidParameter
	// KindSerialization marks a value that cannot be written to the export format.
	KindSerialization
)

// String returns the kind name used in warnings and logs.
func (k Kind) String() string {
	switch k {
	case KindSourceNotFound:
		return "SourceNotFound"
	case KindMissingColumn:
		return "MissingColumn"
	case KindInvalidParameter:
		return "InvalidParameter"
	case KindSerialization:
		return "SerializationError"
	default:
		return "Internal"
	}
}

// PipelineError represents standardized errors across all pipeline operations
type PipelineError struct {
	Kind    Kind   // Failure class
	Op      string // Operation name (e.g., "Load", "Compose", "Rank")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s operation failed on column '%s': %s", e.Op, e.Column, e.Message)
	}
	if e.Op == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s operation failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is().
// A target carrying only a Kind (the Err* sentinels) matches any error of that kind.
func (e *PipelineError) Is(target error) bool {
	pe, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	if pe.Op == "" && pe.Column == "" && pe.Message == "" {
		return e.Kind == pe.Kind
	}
	return e.Kind == pe.Kind && e.Op == pe.Op && e.Column == pe.Column && e.Message == pe.Message
}

// Sentinels for errors.Is matching by kind.
var (
	ErrSourceNotFound   = &PipelineError{Kind: KindSourceNotFound}
	ErrMissingColumn    = &PipelineError{Kind: KindMissingColumn}
	ErrInvalidParameter = &PipelineError{Kind: KindInvalidParameter}
	ErrSerialization    = &PipelineError{Kind: KindSerialization}
)

// NewSourceNotFoundError creates an error for an absent data source
func NewSourceNotFoundError(op, source string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindSourceNotFound,
		Op:      op,
		Message: fmt.Sprintf("source %q not found", source),
		Cause:   cause,
	}
}

// NewMissingColumnError creates an error for operations on non-existent columns
func NewMissingColumnError(op, column string) *PipelineError {
	return &PipelineError{
		Kind:    KindMissingColumn,
		Op:      op,
		Column:  column,
		Message: "column does not exist",
	}
}

// NewInvalidParameterError creates an error for invalid operation inputs
func NewInvalidParameterError(op, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindInvalidParameter,
		Op:      op,
		Message: message,
	}
}

// NewSerializationError creates an error for cells the export format cannot hold
func NewSerializationError(op, column, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindSerialization,
		Op:      op,
		Column:  column,
		Message: message,
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindInternal,
		Op:      op,
		Message: "internal error occurred",
		Cause:   cause,
	}
}

// KindOf reports the Kind of err, or KindInternal when err is not a PipelineError.
func KindOf(err error) Kind {
	for err != nil {
		if pe, ok := err.(*PipelineError); ok { //nolint:errorlint // walking the chain by hand
			return pe.Kind
		}
		u, ok := err.(interface{ Unwrap() error }) //nolint:errorlint // walking the chain by hand
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindInternal
}
