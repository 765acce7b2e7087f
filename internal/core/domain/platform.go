package domain

import "strings"

// =============================================================================
// Platform
// =============================================================================

// PlatformType identifies the operating system family a solution is generated for.
type PlatformType string

const (
	PlatformLinux    PlatformType = "linux"
	PlatformWindows  PlatformType = "windows"
	PlatformUWP      PlatformType = "uwp"
	PlatformScarlett PlatformType = "scarlett"
	PlatformProspero PlatformType = "prospero"
	PlatformIOS      PlatformType = "ios"
	PlatformAndroid  PlatformType = "android"
)

// AllPlatforms lists every known platform in declaration order.
var AllPlatforms = []PlatformType{
	PlatformLinux,
	PlatformWindows,
	PlatformUWP,
	PlatformScarlett,
	PlatformProspero,
	PlatformIOS,
	PlatformAndroid,
}

// ParsePlatform parses a platform name. Matching is case-insensitive.
func ParsePlatform(name string) (PlatformType, bool) {
	p := PlatformType(strings.ToLower(strings.TrimSpace(name)))
	return p, p.IsValid()
}

// IsValid checks if the platform is a known value.
func (p PlatformType) IsValid() bool {
	for _, known := range AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

// IsWindowsFamily reports whether the platform uses the MSVC toolchain conventions.
func (p PlatformType) IsWindowsFamily() bool {
	return p == PlatformWindows || p == PlatformUWP
}

func (p PlatformType) String() string {
	return string(p)
}

// =============================================================================
// Configuration Classes
// =============================================================================

// ConfigurationClass groups configuration names into tiers that share
// linkage and emission rules.
type ConfigurationClass string

const (
	ClassDebug   ConfigurationClass = "debug"
	ClassChecked ConfigurationClass = "checked"
	ClassRelease ConfigurationClass = "release"
	ClassFinal   ConfigurationClass = "final"
	ClassUnknown ConfigurationClass = ""
)

// ClassifyConfiguration maps a configuration name to its class.
// Unrecognized names classify as ClassUnknown.
//
// Example:
//
//	ClassifyConfiguration("Release") // returns ClassRelease
//	ClassifyConfiguration("Profile") // returns ClassUnknown
func ClassifyConfiguration(name string) ConfigurationClass {
	switch ConfigurationClass(strings.ToLower(strings.TrimSpace(name))) {
	case ClassDebug:
		return ClassDebug
	case ClassChecked:
		return ClassChecked
	case ClassRelease:
		return ClassRelease
	case ClassFinal:
		return ClassFinal
	default:
		return ClassUnknown
	}
}

// IsOptimized reports whether the class links against optimized library builds.
// Checked and final tiers reuse the release tier.
func (c ConfigurationClass) IsOptimized() bool {
	return c == ClassChecked || c == ClassRelease || c == ClassFinal
}

// =============================================================================
// Solution Type
// =============================================================================

// LibraryType selects how non-application projects are linked.
type LibraryType string

const (
	LibraryStatic LibraryType = "static"
	LibraryShared LibraryType = "shared"
)

// BuildType selects development or shipping builds.
type BuildType string

const (
	BuildDevelopment BuildType = "dev"
	BuildShipment    BuildType = "ship"
)

// SolutionType combines the library linkage and build flavour of a solution.
type SolutionType struct {
	Libraries LibraryType `json:"libraries"`
	Build     BuildType   `json:"build"`
}

// DefaultSolutionType returns static libraries in a development build.
func DefaultSolutionType() SolutionType {
	return SolutionType{Libraries: LibraryStatic, Build: BuildDevelopment}
}

// ParseLibraryType parses a library type name.
func ParseLibraryType(name string) (LibraryType, bool) {
	switch t := LibraryType(strings.ToLower(strings.TrimSpace(name))); t {
	case LibraryStatic, LibraryShared:
		return t, true
	default:
		return "", false
	}
}

// ParseBuildType parses a build type name.
func ParseBuildType(name string) (BuildType, bool) {
	switch t := BuildType(strings.ToLower(strings.TrimSpace(name))); t {
	case BuildDevelopment, BuildShipment:
		return t, true
	default:
		return "", false
	}
}

// BuildAsLibs reports whether projects are built as static libraries.
func (t SolutionType) BuildAsLibs() bool {
	return t.Libraries != LibraryShared
}

// IsFinal reports whether this is a shipping build.
func (t SolutionType) IsFinal() bool {
	return t.Build == BuildShipment
}
