package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Solution structure errors
	ErrSolutionNameRequired = errors.New("solution name is required")
	ErrNoTargets            = errors.New("solution must declare at least one platform and configuration")
	ErrUnknownPlatform      = errors.New("unknown platform")

	// Project errors
	ErrProjectNameRequired = errors.New("project name is required")
	ErrDuplicateProject    = errors.New("duplicate project name")
	ErrUnknownProject      = errors.New("dependency references unknown project")

	// Library errors
	ErrLibraryNameRequired = errors.New("library name is required")
	ErrLibraryPathRequired = errors.New("library identity path is required")
	ErrDuplicateLibrary    = errors.New("duplicate library name")
	ErrUnknownLibrary      = errors.New("dependency references unknown library")

	// Dependency errors
	ErrInvalidDependency = errors.New("invalid dependency")
)

// ValidationError wraps errors with context about which part of the model is malformed.
type ValidationError struct {
	Field   string // e.g., "projects.core.dependencies[1]"
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
