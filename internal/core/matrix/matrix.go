// Package matrix resolves library settings for every (platform, configuration)
// pair and applies the emission policy for include and link paths.
// This is part of the Functional Core - filesystem checks go through FileStat.
package matrix

import (
	"github.com/artpar/buildgen/internal/core/diag"
	"github.com/artpar/buildgen/internal/core/domain"
)

// =============================================================================
// Capabilities
// =============================================================================

// FileStat reports whether a path exists at resolution time.
type FileStat interface {
	Exists(path string) bool
}

// FileStatFunc adapts a function to FileStat.
type FileStatFunc func(path string) bool

// Exists calls f(path).
func (f FileStatFunc) Exists(path string) bool { return f(path) }

// =============================================================================
// Settings
// =============================================================================

// LinkMode selects which configurations a link path is wired into.
type LinkMode string

const (
	LinkDebug     LinkMode = "debug"
	LinkOptimized LinkMode = "optimized"
)

// LinkEntry is a link path wired for one configuration class.
type LinkEntry struct {
	Path string   `json:"path"`
	Mode LinkMode `json:"mode"`
}

// Settings is the resolved view of one library for one target.
type Settings struct {
	Library       string                    `json:"library"`
	Platform      domain.PlatformType       `json:"platform"`
	Configuration string                    `json:"configuration"`
	Class         domain.ConfigurationClass `json:"class"`

	// State is the merged settings with missing link paths removed.
	State domain.MergedState `json:"state"`

	// Includes and Links are what a backend should emit for this target.
	Includes []string    `json:"includes"`
	Links    []LinkEntry `json:"links"`

	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
}

// =============================================================================
// Resolver
// =============================================================================

// Resolver merges library configs and applies the emission policy.
type Resolver struct {
	stat                 FileStat
	includeConfiguration string
}

// NewResolver creates a resolver for a solution with the given configurations.
// Include paths are emitted only for the configuration chosen by
// IncludeConfiguration.
func NewResolver(stat FileStat, configurations []string) *Resolver {
	return &Resolver{
		stat:                 stat,
		includeConfiguration: IncludeConfiguration(configurations),
	}
}

// IncludeConfiguration returns the configuration that carries include paths:
// the first release-class configuration, or the first configuration when the
// solution declares none.
func IncludeConfiguration(configurations []string) string {
	for _, c := range configurations {
		if domain.ClassifyConfiguration(c) == domain.ClassRelease {
			return c
		}
	}
	if len(configurations) > 0 {
		return configurations[0]
	}
	return ""
}

// Resolve merges the library config for one target.
//
// Link paths that do not exist are dropped, each with a missing-link-path
// diagnostic. Existing link paths are wired as debug for debug-class
// configurations and as optimized for checked, release and final ones.
// Unclassified configurations get no link wiring and one
// unclassified-configuration diagnostic when there was something to wire.
//
// Example:
//
//	// foo: generic include /inc/foo, Release link /lib/foo_r.lib (missing)
//	s := r.Resolve(foo, domain.PlatformLinux, "Release")
//	s.State.IncludePaths // ["/inc/foo"]
//	s.State.LinkPaths    // []
//	len(s.Diagnostics)   // 1
func (r *Resolver) Resolve(lib *domain.Library, platform domain.PlatformType, configuration string) Settings {
	merged := lib.Config.Merge(platform, configuration)
	class := domain.ClassifyConfiguration(configuration)

	settings := Settings{
		Library:       lib.Name,
		Platform:      platform,
		Configuration: configuration,
		Class:         class,
		Includes:      []string{},
		Links:         []LinkEntry{},
	}

	existing := make([]string, 0, len(merged.LinkPaths))
	for _, path := range merged.LinkPaths {
		if r.stat.Exists(path) {
			existing = append(existing, path)
			continue
		}
		settings.Diagnostics = append(settings.Diagnostics, diag.Diagnostic{
			Kind:          diag.KindMissingLinkPath,
			Library:       lib.Name,
			Path:          path,
			Platform:      string(platform),
			Configuration: configuration,
			Message:       "link path does not exist",
		})
	}
	merged.LinkPaths = existing
	settings.State = merged

	if domain.SameConfiguration(configuration, r.includeConfiguration) {
		settings.Includes = append(settings.Includes, merged.IncludePaths...)
	}

	switch {
	case class == domain.ClassDebug:
		settings.Links = wire(existing, LinkDebug)
	case class.IsOptimized():
		settings.Links = wire(existing, LinkOptimized)
	case len(existing) > 0:
		settings.Diagnostics = append(settings.Diagnostics, diag.Diagnostic{
			Kind:          diag.KindUnclassifiedConfiguration,
			Library:       lib.Name,
			Platform:      string(platform),
			Configuration: configuration,
			Message:       "configuration has no link class, link paths not wired",
		})
	}

	return settings
}

// ResolveAll resolves the library for every target, in target order.
func (r *Resolver) ResolveAll(lib *domain.Library, targets []domain.Target) []Settings {
	out := make([]Settings, 0, len(targets))
	for _, t := range targets {
		out = append(out, r.Resolve(lib, t.Platform, t.Configuration))
	}
	return out
}

func wire(paths []string, mode LinkMode) []LinkEntry {
	entries := make([]LinkEntry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, LinkEntry{Path: p, Mode: mode})
	}
	return entries
}
