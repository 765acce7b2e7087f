package domain

import "strings"

// =============================================================================
// Library Types
// =============================================================================

// Library is an external library referenced by projects.
// Path is the absolute identity path: it is the sort and deduplication key,
// two libraries with the same Path are the same artifact regardless of Name.
type Library struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Config Config `json:"config"`
}

// DeployMapping copies a runtime file into the per-configuration publish tree.
type DeployMapping struct {
	SourcePath string `json:"source"`
	TargetPath string `json:"target"` // relative to <publish>/<configuration>
}

// SystemLibrary is a library located by the build system itself.
// Every field except Name is optional.
type SystemLibrary struct {
	Name            string `json:"name"`
	IncludeDirsVar  string `json:"include_dirs_var,omitempty"`
	IncludeFile     string `json:"include_file,omitempty"`
	LinkDirsVar     string `json:"link_dirs_var,omitempty"`
	LibraryFilesVar string `json:"library_files_var,omitempty"`
	DefinitionsVar  string `json:"definitions_var,omitempty"`
	Flags           string `json:"flags,omitempty"`
}

// =============================================================================
// Layered Config
// =============================================================================

// ConfigLayer is one block of library settings. An empty Platform or
// Configuration matches any value.
type ConfigLayer struct {
	Platform        PlatformType    `json:"platform,omitempty"`
	Configuration   string          `json:"configuration,omitempty"`
	IncludePaths    []string        `json:"include_paths,omitempty"`
	LinkPaths       []string        `json:"link_paths,omitempty"`
	DeployFiles     []DeployMapping `json:"deploy,omitempty"`
	SystemLibraries []SystemLibrary `json:"system_libraries,omitempty"`
}

// Config holds the layers of a library's settings in declaration order.
type Config struct {
	Layers []ConfigLayer `json:"layers,omitempty"`
}

// MergedState is the resolved library settings for one (platform, configuration) pair.
type MergedState struct {
	IncludePaths    []string        `json:"include_paths"`
	LinkPaths       []string        `json:"link_paths"`
	DeployFiles     []DeployMapping `json:"deploy"`
	SystemLibraries []SystemLibrary `json:"system_libraries"`
}

// IsEmpty reports whether the state carries no settings at all.
func (s MergedState) IsEmpty() bool {
	return len(s.IncludePaths) == 0 && len(s.LinkPaths) == 0 &&
		len(s.DeployFiles) == 0 && len(s.SystemLibraries) == 0
}

// specificity ranks a layer: generic < config-only < platform-only < exact.
func (l ConfigLayer) specificity() int {
	rank := 0
	if l.Configuration != "" {
		rank++
	}
	if l.Platform != "" {
		rank += 2
	}
	return rank
}

func (l ConfigLayer) matches(platform PlatformType, configuration string) bool {
	if l.Platform != "" && l.Platform != platform {
		return false
	}
	if l.Configuration != "" && !SameConfiguration(l.Configuration, configuration) {
		return false
	}
	return true
}

// SameConfiguration compares configuration names case-insensitively.
func SameConfiguration(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Merge resolves the layered settings for one (platform, configuration) pair.
//
// Layers apply from least to most specific (generic, configuration-only,
// platform-only, exact) and in declaration order within a tier:
//   - include and link paths are appended and never deduplicated
//   - deploy files are appended; a later mapping to the same target replaces
//     the earlier one in place
//   - system libraries are appended; a later entry with the same name
//     replaces the earlier one in place
//
// Example:
//
//	cfg := Config{Layers: []ConfigLayer{
//	    {IncludePaths: []string{"/inc/foo"}},
//	    {Platform: PlatformLinux, Configuration: "release", IncludePaths: []string{"/inc/foo/linux"}},
//	}}
//	cfg.Merge(PlatformLinux, "release").IncludePaths // ["/inc/foo", "/inc/foo/linux"]
func (c Config) Merge(platform PlatformType, configuration string) MergedState {
	state := MergedState{
		IncludePaths:    []string{},
		LinkPaths:       []string{},
		DeployFiles:     []DeployMapping{},
		SystemLibraries: []SystemLibrary{},
	}

	for tier := 0; tier <= 3; tier++ {
		for _, layer := range c.Layers {
			if layer.specificity() != tier || !layer.matches(platform, configuration) {
				continue
			}
			state.IncludePaths = append(state.IncludePaths, layer.IncludePaths...)
			state.LinkPaths = append(state.LinkPaths, layer.LinkPaths...)
			for _, m := range layer.DeployFiles {
				state.DeployFiles = upsertDeploy(state.DeployFiles, m)
			}
			for _, sl := range layer.SystemLibraries {
				state.SystemLibraries = upsertSystemLibrary(state.SystemLibraries, sl)
			}
		}
	}

	return state
}

func upsertDeploy(list []DeployMapping, m DeployMapping) []DeployMapping {
	for i := range list {
		if list[i].TargetPath == m.TargetPath {
			list[i] = m
			return list
		}
	}
	return append(list, m)
}

func upsertSystemLibrary(list []SystemLibrary, sl SystemLibrary) []SystemLibrary {
	for i := range list {
		if list[i].Name == sl.Name {
			list[i] = sl
			return list
		}
	}
	return append(list, sl)
}
