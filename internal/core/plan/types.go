// Package plan assembles the backend-agnostic BuildPlan from a solution.
// This is part of the Functional Core - the only capability it touches is the
// injected FileStat used to check link paths.
package plan

import (
	"strings"

	"github.com/artpar/buildgen/internal/core/dependency"
	"github.com/artpar/buildgen/internal/core/diag"
	"github.com/artpar/buildgen/internal/core/domain"
	"github.com/artpar/buildgen/internal/core/matrix"
	"github.com/artpar/buildgen/internal/core/steps"
)

// =============================================================================
// Plan Types
// =============================================================================

// LibrarySettings is the per-target settings table of one library.
type LibrarySettings struct {
	Name    string            `json:"name"`
	Path    string            `json:"path"`
	Targets []matrix.Settings `json:"targets"`
}

// ForTarget returns the settings of one target.
func (l LibrarySettings) ForTarget(platform domain.PlatformType, configuration string) (matrix.Settings, bool) {
	for _, s := range l.Targets {
		if s.Platform == platform && domain.SameConfiguration(s.Configuration, configuration) {
			return s, true
		}
	}
	return matrix.Settings{}, false
}

// DeployAction copies one runtime file into a configuration's publish tree.
type DeployAction struct {
	Library       string `json:"library"`
	Configuration string `json:"configuration"`
	SourcePath    string `json:"source"`
	TargetPath    string `json:"target"` // relative to <publish>/<lowercase configuration>
}

// key identifies the destination file of the action.
func (a DeployAction) key() string {
	return strings.ToLower(a.Configuration) + "\x00" + a.TargetPath
}

// ProjectPlan is the resolved plan of one enabled project.
type ProjectPlan struct {
	Name        string             `json:"name"`
	GUID        string             `json:"guid"`
	Group       string             `json:"group,omitempty"`
	Kind        domain.ProjectKind `json:"kind"`
	Attributes  map[string]bool    `json:"attributes,omitempty"`
	SourceRoots []string           `json:"source_roots"`

	LinkOrder   []dependency.LinkTarget `json:"link_order"`
	Libraries   []LibrarySettings       `json:"libraries"`
	Deployments []DeployAction          `json:"deployments"`

	GeneratedDir string        `json:"generated_dir"`
	Steps        []steps.Step  `json:"steps"`
	Sources      []domain.File `json:"sources"`
	Headers      []domain.File `json:"headers"`
}

// HasAttribute reports whether the project carries the attribute.
func (p *ProjectPlan) HasAttribute(name string) bool {
	return p.Attributes[name]
}

// ProjectLinks returns the projects in the link order.
func (p *ProjectPlan) ProjectLinks() []string {
	var out []string
	for _, t := range p.LinkOrder {
		if t.Kind == dependency.TargetProject {
			out = append(out, t.Name)
		}
	}
	return out
}

// BuildPlan is the complete resolved description handed to an emitter.
// It is built once per run and holds no state across runs.
type BuildPlan struct {
	Solution             string                `json:"solution"`
	Platform             domain.PlatformType   `json:"platform"`
	Type                 domain.SolutionType   `json:"type"`
	Platforms            []domain.PlatformType `json:"platforms"`
	Configurations       []string              `json:"configurations"`
	IncludeConfiguration string                `json:"include_configuration"`
	PublishRoot          string                `json:"publish_root"`
	GeneratedRoot        string                `json:"generated_root"`
	Projects             []ProjectPlan         `json:"projects"`
	Diagnostics          []diag.Diagnostic     `json:"diagnostics"`
}

// Project looks up a project plan by name.
func (p *BuildPlan) Project(name string) (*ProjectPlan, bool) {
	for i := range p.Projects {
		if p.Projects[i].Name == name {
			return &p.Projects[i], true
		}
	}
	return nil, false
}

// Deployments returns every project's deploy actions, deduplicated by
// (configuration, target path). The first occurrence wins.
func (p *BuildPlan) Deployments() []DeployAction {
	seen := make(map[string]bool)
	var out []DeployAction
	for _, proj := range p.Projects {
		for _, a := range proj.Deployments {
			if seen[a.key()] {
				continue
			}
			seen[a.key()] = true
			out = append(out, a)
		}
	}
	return out
}
