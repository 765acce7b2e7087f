// Package manifest loads a solution description from YAML or HCL and turns it
// into the domain model. Relative paths are resolved against the manifest's
// directory.
package manifest

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrUnsupportedFormat = errors.New("unsupported manifest format")
	ErrReadFailed        = errors.New("failed to read manifest")
	ErrInvalidManifest   = errors.New("invalid manifest")
)

// LoadError wraps errors with the manifest path and the offending field.
type LoadError struct {
	Path    string
	Field   string // e.g., "projects[2].files[0]"
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a new LoadError.
func NewLoadError(path, field, message string, err error) *LoadError {
	return &LoadError{
		Path:    path,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
