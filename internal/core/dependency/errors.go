// Package dependency resolves link order and library visibility for projects.
// This is part of the Functional Core - all functions are pure with no I/O.
package dependency

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrCyclicDependency = errors.New("cyclic project dependency")
	ErrUnknownProject   = errors.New("unknown project")
	ErrProjectDisabled  = errors.New("project is disabled")
)

// CycleError names the projects forming a dependency cycle.
// Path starts and ends with the same project.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic project dependency: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}
