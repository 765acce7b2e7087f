package plan

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrInvalidParameters reports malformed or missing top-level generation parameters.
	ErrInvalidParameters = errors.New("invalid generation parameters")
)

// Phase names the planning stage in which a fatal error occurred.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseResolve  Phase = "resolve"
	PhasePlan     Phase = "plan"
)

// PhaseError wraps a fatal planning error with the phase it came from.
// When Build returns a PhaseError no plan is returned.
type PhaseError struct {
	Phase   Phase
	Project string // empty for solution-wide failures
	Err     error
}

func (e *PhaseError) Error() string {
	if e.Project != "" {
		return fmt.Sprintf("%s phase: project %s: %v", e.Phase, e.Project, e.Err)
	}
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func newPhaseError(phase Phase, project string, err error) *PhaseError {
	return &PhaseError{Phase: phase, Project: project, Err: err}
}
