// Package emitter renders a BuildPlan into backend-specific files.
// Each backend is one Emitter; the Registry selects a backend by name.
package emitter

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/buildgen/internal/core/plan"
	"github.com/artpar/buildgen/internal/shell/output"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrUnknownBackend      = errors.New("unknown backend")
	ErrDuplicateBackend    = errors.New("backend already registered")
	ErrPlanRequired        = errors.New("build plan is required")
	ErrUnsupportedPlatform = errors.New("platform not supported by backend")
)

// RejectError explains why a backend refused a plan.
type RejectError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("backend %s rejected plan: %s", e.Backend, e.Reason)
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Emitter
// =============================================================================

// Emitter renders a plan into files for one build system.
// Render must only be called after Accepts returned nil and must not write
// anything itself.
type Emitter interface {
	Name() string
	Accepts(bp *plan.BuildPlan) error
	Render(bp *plan.BuildPlan) ([]output.File, error)
}

// Emit checks the plan against the emitter and renders it.
func Emit(e Emitter, bp *plan.BuildPlan) ([]output.File, error) {
	if bp == nil {
		return nil, &RejectError{Backend: e.Name(), Reason: "no plan", Err: ErrPlanRequired}
	}
	if err := e.Accepts(bp); err != nil {
		return nil, err
	}
	return e.Render(bp)
}

// =============================================================================
// Registry
// =============================================================================

// Registry maps backend names to emitters. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	emitters map[string]Emitter
}

// NewRegistry creates a registry holding the given emitters.
func NewRegistry(emitters ...Emitter) (*Registry, error) {
	r := &Registry{emitters: make(map[string]Emitter)}
	for _, e := range emitters {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry with the built-in backends.
func DefaultRegistry(cmake CMakeConfig) *Registry {
	r, _ := NewRegistry(NewCMake(cmake), NewJSON())
	return r
}

// Register adds an emitter under its name.
func (r *Registry) Register(e Emitter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emitters[e.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBackend, e.Name())
	}
	r.emitters[e.Name()] = e
	return nil
}

// Get returns the emitter registered under name.
func (r *Registry) Get(name string) (Emitter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.emitters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, r.namesLocked())
	}
	return e, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.emitters))
	for name := range r.emitters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
