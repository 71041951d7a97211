package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur during gate validation and enhancement.
var (
	// ErrGateNotFound indicates that no gate definition exists for an id.
	// Callers treat it as "no such gate" rather than a validation failure.
	ErrGateNotFound = errors.New("gate not found")

	// ErrInvalidGateDefinition indicates that a gate definition failed
	// structural validation while being loaded.
	ErrInvalidGateDefinition = errors.New("invalid gate definition")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrSelfCheckUnavailable indicates that an LLM self-check could not
	// reach its backend during an enhancement validation phase.
	ErrSelfCheckUnavailable = errors.New("self-check backend unavailable")
)

// GateError represents an error tied to a specific gate.
// It provides context about which gate and operation caused the error.
type GateError struct {
	// GateID is the gate that was involved in the failed operation.
	GateID string

	// Operation describes what was being performed when the error occurred.
	Operation string

	// Err is the underlying error that caused the operation to fail.
	Err error
}

// Error implements the error interface for GateError.
func (e *GateError) Error() string {
	return fmt.Sprintf("gate error: operation=%s, gate=%s, err=%v", e.Operation, e.GateID, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *GateError) Unwrap() error { return e.Err }

// NewGateError creates a new GateError with the given details.
func NewGateError(gateID, operation string, err error) *GateError {
	return &GateError{
		GateID:    gateID,
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
	return fmt.Sprintf("validation errors for %s: %s", e.Entity, strings.Join(e.Errors, "; "))
}

// Unwrap lets callers match every ValidationError against ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
