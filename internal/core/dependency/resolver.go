package dependency

import (
	"fmt"
	"sort"

	"github.com/artpar/buildgen/internal/core/domain"
)

// =============================================================================
// Link Targets
// =============================================================================

// TargetKind distinguishes project and library entries in a link list.
type TargetKind string

const (
	TargetProject TargetKind = "project"
	TargetLibrary TargetKind = "library"
)

// LinkTarget is one entry of a resolved link order.
type LinkTarget struct {
	Kind TargetKind `json:"kind"`
	Name string     `json:"name"`
	Path string     `json:"path,omitempty"` // library identity path
}

// Key is the stable tie-break key: identity path for libraries, name for projects.
func (t LinkTarget) Key() string {
	if t.Kind == TargetLibrary {
		return t.Path
	}
	return t.Name
}

// nodeID keeps project and library keys from colliding in the graph.
func (t LinkTarget) nodeID() string {
	return string(t.Kind) + ":" + t.Key()
}

// =============================================================================
// Resolver
// =============================================================================

// Resolver answers dependency queries over a validated solution.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	solution  *domain.Solution
	projects  map[string]*domain.Project
	libraries map[string]*domain.Library
}

// NewResolver indexes the solution. The solution must already be validated.
func NewResolver(solution *domain.Solution) *Resolver {
	r := &Resolver{
		solution:  solution,
		projects:  make(map[string]*domain.Project, len(solution.Projects)),
		libraries: make(map[string]*domain.Library, len(solution.Libraries)),
	}
	for _, p := range solution.Projects {
		r.projects[p.Name] = p
	}
	for _, l := range solution.Libraries {
		r.libraries[l.Name] = l
	}
	return r
}

func (r *Resolver) enabledProject(name string) (*domain.Project, error) {
	p, ok := r.projects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, name)
	}
	if !r.solution.IsEnabled(p) {
		return nil, fmt.Errorf("%w: %s", ErrProjectDisabled, name)
	}
	return p, nil
}

// projectDeps returns the enabled projects p links against, in declaration order.
func (r *Resolver) projectDeps(p *domain.Project) []*domain.Project {
	var deps []*domain.Project
	for _, d := range p.Dependencies {
		if d.Type != domain.DependencyProjectLink {
			continue
		}
		dep, ok := r.projects[d.Target]
		if !ok || !r.solution.IsEnabled(dep) {
			continue
		}
		deps = append(deps, dep)
	}
	return deps
}

// reachable returns p and every enabled project reachable from it through
// ProjectLink edges. Traversal never passes through a disabled project.
func (r *Resolver) reachable(p *domain.Project) []*domain.Project {
	seen := map[string]bool{p.Name: true}
	order := []*domain.Project{p}
	for i := 0; i < len(order); i++ {
		for _, dep := range r.projectDeps(order[i]) {
			if seen[dep.Name] {
				continue
			}
			seen[dep.Name] = true
			order = append(order, dep)
		}
	}
	return order
}

// =============================================================================
// Library Visibility
// =============================================================================

// CollectLibraries returns the libraries of the given visibility seen by project.
//
// Public libraries propagate: with recursive set, the public libraries of every
// project reachable through ProjectLink edges are included. Private libraries
// never propagate, so recursive has no effect for them.
// The result is deduplicated by identity path and sorted by path.
func (r *Resolver) CollectLibraries(project string, recursive bool, visibility domain.DependencyType) ([]*domain.Library, error) {
	p, err := r.enabledProject(project)
	if err != nil {
		return nil, err
	}
	if !visibility.IsLibrary() {
		return nil, fmt.Errorf("%w: %q is not a library visibility", domain.ErrInvalidDependency, visibility)
	}

	owners := []*domain.Project{p}
	if recursive && visibility == domain.DependencyPublicLibrary {
		owners = r.reachable(p)
	}

	var libs []*domain.Library
	for _, owner := range owners {
		for _, d := range owner.Dependencies {
			if d.Type != visibility {
				continue
			}
			if lib, ok := r.libraries[d.Target]; ok {
				libs = append(libs, lib)
			}
		}
	}
	return dedupeByPath(libs), nil
}

// InternalLibraries returns the libraries whose include paths are injected into
// project: its recursive public libraries plus its direct private libraries.
//
// Example:
//
//	// A privately uses L1 and publicly uses L2, B links A
//	r.InternalLibraries("B") // [L2]
//	r.InternalLibraries("A") // [L1, L2] sorted by identity path
func (r *Resolver) InternalLibraries(project string) ([]*domain.Library, error) {
	public, err := r.CollectLibraries(project, true, domain.DependencyPublicLibrary)
	if err != nil {
		return nil, err
	}
	private, err := r.CollectLibraries(project, false, domain.DependencyPrivateLibrary)
	if err != nil {
		return nil, err
	}
	return dedupeByPath(append(public, private...)), nil
}

func dedupeByPath(libs []*domain.Library) []*domain.Library {
	seen := make(map[string]bool, len(libs))
	out := make([]*domain.Library, 0, len(libs))
	for _, l := range libs {
		if seen[l.Path] {
			continue
		}
		seen[l.Path] = true
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
