package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during recovery operations.
var (
	// ErrInsufficientData indicates that no video in a matrix carries a single
	// observation, so nothing can be estimated. Individual empty videos are
	// flagged on the result instead of failing the run.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrEmptyMatrix indicates that a matrix has no videos or no subjects.
	ErrEmptyMatrix = errors.New("empty matrix")

	// ErrInvalidObservation indicates a NaN, infinite, or missing opinion score.
	ErrInvalidObservation = errors.New("invalid observation")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownModel indicates a model name outside the supported enumeration.
	ErrUnknownModel = errors.New("unknown model")

	// ErrDisconnectedComparisons indicates that the comparison graph splits
	// into components with no comparisons between them, so relative merits
	// across components are not identifiable.
	ErrDisconnectedComparisons = errors.New("comparison graph is disconnected")

	// ErrIndexOutOfRange indicates a video or subject index outside the matrix.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// ModelError represents an error raised while a model was recovering scores.
// It records which model and which phase failed.
type ModelError struct {
	// Model is the model that produced the error.
	Model ModelKind

	// Operation describes the phase that failed (e.g. "init", "iterate").
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ModelError.
func (e *ModelError) Error() string {
	return fmt.Sprintf("model error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError creates a new ModelError with the given details.
func NewModelError(model ModelKind, operation string, err error) *ModelError {
	return &ModelError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddErrorf adds a formatted error message to the validation error.
func (e *ValidationError) AddErrorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// ErrOrNil returns the ValidationError when it holds errors and nil otherwise.
func (e *ValidationError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
