package domain

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// =============================================================================
// Dependency
// =============================================================================

// DependencyType tags a dependency edge.
type DependencyType string

const (
	// DependencyProjectLink links against another project in the solution.
	DependencyProjectLink DependencyType = "project"
	// DependencyPublicLibrary is visible to every project that transitively depends on the owner.
	DependencyPublicLibrary DependencyType = "public"
	// DependencyPrivateLibrary is visible only to the owning project.
	DependencyPrivateLibrary DependencyType = "private"
)

// IsLibrary reports whether the dependency targets a library.
func (t DependencyType) IsLibrary() bool {
	return t == DependencyPublicLibrary || t == DependencyPrivateLibrary
}

// Dependency references another project (by name) or a library (by name).
type Dependency struct {
	Type   DependencyType `json:"type"`
	Target string         `json:"target"`
}

// =============================================================================
// Project
// =============================================================================

// Well-known project attributes.
const (
	AttrApp        = "app"
	AttrConsole    = "console"
	AttrNoSymbols  = "nosymbols"
	AttrReflection = "reflection"
	AttrDisabled   = "disabled"
)

// ProjectKind is the artifact a project produces.
type ProjectKind string

const (
	KindLibrary ProjectKind = "library"
	KindApp     ProjectKind = "app"
	KindConsole ProjectKind = "console"
)

// Project is a unit of compilation producing one library or executable.
type Project struct {
	Name         string          `json:"name"`
	Group        string          `json:"group,omitempty"`
	Files        []File          `json:"files"`
	Dependencies []Dependency    `json:"dependencies,omitempty"`
	SourceRoots  []string        `json:"source_roots,omitempty"`
	Attributes   map[string]bool `json:"attributes,omitempty"`
}

// HasAttribute reports whether the boolean attribute is set.
func (p *Project) HasAttribute(name string) bool {
	return p.Attributes[name]
}

// Kind returns the artifact kind derived from the project attributes.
func (p *Project) Kind() ProjectKind {
	switch {
	case p.HasAttribute(AttrApp):
		return KindApp
	case p.HasAttribute(AttrConsole):
		return KindConsole
	default:
		return KindLibrary
	}
}

// GUID returns a stable identifier derived from the project name.
// The same name always yields the same GUID across runs.
func (p *Project) GUID() string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("buildgen.project."+p.Name)).String()
}

// RequiresReflection reports whether the project or any of its files is
// marked for reflection glue generation.
func (p *Project) RequiresReflection() bool {
	if p.HasAttribute(AttrReflection) {
		return true
	}
	for _, f := range p.Files {
		if f.Reflection {
			return true
		}
	}
	return false
}

// =============================================================================
// Solution
// =============================================================================

// Target is one cell of the (platform, configuration) matrix.
type Target struct {
	Platform      PlatformType `json:"platform"`
	Configuration string       `json:"configuration"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.Platform, t.Configuration)
}

// Solution is the top-level set of projects generated together.
type Solution struct {
	Name           string         `json:"name"`
	Platform       PlatformType   `json:"platform"`
	Type           SolutionType   `json:"type"`
	Platforms      []PlatformType `json:"platforms"`
	Configurations []string       `json:"configurations"`
	Projects       []*Project     `json:"projects"`
	Libraries      []*Library     `json:"libraries"`

	// DisabledProjects lists projects excluded by the solution configuration.
	DisabledProjects []string `json:"disabled_projects,omitempty"`
}

// Targets returns the (platform, configuration) matrix in declaration order,
// configurations varying fastest.
func (s *Solution) Targets() []Target {
	targets := make([]Target, 0, len(s.Platforms)*len(s.Configurations))
	for _, p := range s.Platforms {
		for _, c := range s.Configurations {
			targets = append(targets, Target{Platform: p, Configuration: c})
		}
	}
	return targets
}

// Project looks up a project by name.
func (s *Solution) Project(name string) (*Project, bool) {
	for _, p := range s.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Library looks up a library by name.
func (s *Solution) Library(name string) (*Library, bool) {
	for _, l := range s.Libraries {
		if l.Name == name {
			return l, true
		}
	}
	return nil, false
}

// IsEnabled reports whether the project takes part in generation.
func (s *Solution) IsEnabled(p *Project) bool {
	if p.HasAttribute(AttrDisabled) {
		return false
	}
	for _, name := range s.DisabledProjects {
		if name == p.Name {
			return false
		}
	}
	return true
}

// EnabledProjects returns the enabled projects sorted by name.
func (s *Solution) EnabledProjects() []*Project {
	var out []*Project
	for _, p := range s.Projects {
		if s.IsEnabled(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks the structural invariants of the model: unique names,
// resolvable dependency references and a non-empty target matrix.
func (s *Solution) Validate() error {
	if s.Name == "" {
		return NewValidationError("solution.name", "solution name is required", ErrSolutionNameRequired)
	}
	if !s.Platform.IsValid() {
		return NewValidationError("solution.platform", fmt.Sprintf("unknown platform %q", s.Platform), ErrUnknownPlatform)
	}
	if len(s.Platforms) == 0 || len(s.Configurations) == 0 {
		return NewValidationError("solution", "no targets declared", ErrNoTargets)
	}
	for i, p := range s.Platforms {
		if !p.IsValid() {
			return NewValidationError(fmt.Sprintf("solution.platforms[%d]", i), fmt.Sprintf("unknown platform %q", p), ErrUnknownPlatform)
		}
	}

	libraries := make(map[string]bool, len(s.Libraries))
	for i, l := range s.Libraries {
		field := fmt.Sprintf("libraries[%d]", i)
		if l.Name == "" {
			return NewValidationError(field, "library name is required", ErrLibraryNameRequired)
		}
		if l.Path == "" {
			return NewValidationError(field, fmt.Sprintf("library %q has no identity path", l.Name), ErrLibraryPathRequired)
		}
		if libraries[l.Name] {
			return NewValidationError(field, fmt.Sprintf("library %q declared twice", l.Name), ErrDuplicateLibrary)
		}
		libraries[l.Name] = true
	}

	projects := make(map[string]bool, len(s.Projects))
	for i, p := range s.Projects {
		if p.Name == "" {
			return NewValidationError(fmt.Sprintf("projects[%d]", i), "project name is required", ErrProjectNameRequired)
		}
		if projects[p.Name] {
			return NewValidationError(fmt.Sprintf("projects[%d]", i), fmt.Sprintf("project %q declared twice", p.Name), ErrDuplicateProject)
		}
		projects[p.Name] = true
	}

	for _, p := range s.Projects {
		for i, dep := range p.Dependencies {
			field := fmt.Sprintf("projects.%s.dependencies[%d]", p.Name, i)
			switch dep.Type {
			case DependencyProjectLink:
				if !projects[dep.Target] {
					return NewValidationError(field, fmt.Sprintf("unknown project %q", dep.Target), ErrUnknownProject)
				}
			case DependencyPublicLibrary, DependencyPrivateLibrary:
				if !libraries[dep.Target] {
					return NewValidationError(field, fmt.Sprintf("unknown library %q", dep.Target), ErrUnknownLibrary)
				}
			default:
				return NewValidationError(field, fmt.Sprintf("unknown dependency type %q", dep.Type), ErrInvalidDependency)
			}
		}
	}

	return nil
}
