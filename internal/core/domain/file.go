package domain

import (
	"path/filepath"
	"strings"
)

// =============================================================================
// File Types
// =============================================================================

// FileType classifies a project input.
type FileType string

const (
	FileSource              FileType = "source"
	FileHeader              FileType = "header"
	FileInterfaceDefinition FileType = "interface"
	FileGrammar             FileType = "grammar"
)

// IsValid checks if the file type is a known value.
func (t FileType) IsValid() bool {
	switch t {
	case FileSource, FileHeader, FileInterfaceDefinition, FileGrammar:
		return true
	default:
		return false
	}
}

// IsPlain reports whether the file is compiled as-is, without a derived step.
func (t FileType) IsPlain() bool {
	return t == FileSource || t == FileHeader
}

// PCHMode controls precompiled header usage for a source file.
type PCHMode string

const (
	PCHDefault  PCHMode = ""
	PCHGenerate PCHMode = "generate"
	PCHDisable  PCHMode = "disable"
)

// PCHGeneratorName is the declared source that produces the precompiled header.
const PCHGeneratorName = "build.cpp"

// =============================================================================
// File
// =============================================================================

// File is a single project input.
type File struct {
	Path       string         `json:"path"`
	Type       FileType       `json:"type"`
	Platforms  []PlatformType `json:"platforms,omitempty"` // empty means all platforms
	PCH        PCHMode        `json:"pch,omitempty"`
	Reflection bool           `json:"reflection,omitempty"`
	Generated  bool           `json:"generated,omitempty"`
}

// NewGeneratedFile creates a synthetic file. Generated files carry no
// platform filter and never take part in precompiled headers.
func NewGeneratedFile(path string, fileType FileType) File {
	return File{
		Path:      path,
		Type:      fileType,
		PCH:       PCHDisable,
		Generated: true,
	}
}

// Name returns the file name without directories.
func (f File) Name() string {
	return filepath.Base(f.Path)
}

// CoreName returns the file name without directories and extension.
//
// Example:
//
//	File{Path: "/src/net/Messages.proto"}.CoreName() // returns "Messages"
func (f File) CoreName() string {
	name := f.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// AppliesTo reports whether the file is built for the given platform.
func (f File) AppliesTo(platform PlatformType) bool {
	if f.Generated || len(f.Platforms) == 0 {
		return true
	}
	for _, p := range f.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// IsPCHGenerator reports whether the file produces the precompiled header.
func (f File) IsPCHGenerator() bool {
	return f.PCH == PCHGenerate || (!f.Generated && f.Name() == PCHGeneratorName)
}

// ClassifyPath infers a FileType from a path extension.
// Returns false for extensions that are not project inputs.
func ClassifyPath(path string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".cc", ".cpp", ".cxx":
		return FileSource, true
	case ".h", ".hh", ".hpp", ".hxx", ".inl":
		return FileHeader, true
	case ".proto":
		return FileInterfaceDefinition, true
	case ".g4":
		return FileGrammar, true
	default:
		return "", false
	}
}
