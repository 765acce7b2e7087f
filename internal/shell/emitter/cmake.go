package emitter

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/artpar/buildgen/internal/core/domain"
	"github.com/artpar/buildgen/internal/core/matrix"
	"github.com/artpar/buildgen/internal/core/plan"
	"github.com/artpar/buildgen/internal/core/steps"
	"github.com/artpar/buildgen/internal/shell/output"
)

const cmakeHeader = "# Generated by buildgen. DO NOT EDIT."

// CMakeConfig configures the CMake backend.
type CMakeConfig struct {
	MinimumVersion   string `mapstructure:"minimum_version"`
	CXXStandard      int    `mapstructure:"cxx_standard"`
	BuildScriptsPath string `mapstructure:"module_path"` // CMAKE_MODULE_PATH, optional
}

// DefaultCMakeConfig returns default configuration.
func DefaultCMakeConfig() CMakeConfig {
	return CMakeConfig{
		MinimumVersion: "3.16",
		CXXStandard:    17,
	}
}

// CMake renders a solution CMakeLists.txt plus one CMakeLists.txt per project.
type CMake struct {
	config CMakeConfig
}

// NewCMake creates the CMake backend.
func NewCMake(config CMakeConfig) *CMake {
	defaults := DefaultCMakeConfig()
	if config.MinimumVersion == "" {
		config.MinimumVersion = defaults.MinimumVersion
	}
	if config.CXXStandard == 0 {
		config.CXXStandard = defaults.CXXStandard
	}
	return &CMake{config: config}
}

func (*CMake) Name() string { return "cmake" }

// Accepts rejects console platforms, which need vendor toolchain files.
func (c *CMake) Accepts(bp *plan.BuildPlan) error {
	if bp == nil {
		return &RejectError{Backend: c.Name(), Reason: "no plan", Err: ErrPlanRequired}
	}
	switch bp.Platform {
	case domain.PlatformScarlett, domain.PlatformProspero:
		return &RejectError{Backend: c.Name(), Reason: fmt.Sprintf("platform %s", bp.Platform), Err: ErrUnsupportedPlatform}
	}
	return nil
}

// Render produces CMakeLists.txt at the root and <project>/CMakeLists.txt for
// every project, in plan order.
func (c *CMake) Render(bp *plan.BuildPlan) ([]output.File, error) {
	files := []output.File{{Path: "CMakeLists.txt", Content: c.renderSolution(bp)}}
	for i := range bp.Projects {
		pp := &bp.Projects[i]
		files = append(files, output.File{
			Path:    path.Join(pp.Name, "CMakeLists.txt"),
			Content: c.renderProject(bp, pp),
		})
	}
	return files, nil
}

// =============================================================================
// Solution File
// =============================================================================

func (c *CMake) renderSolution(bp *plan.BuildPlan) []byte {
	var w lineWriter
	w.line(cmakeHeader)
	w.line("")
	w.linef("cmake_minimum_required(VERSION %s)", c.config.MinimumVersion)
	w.linef("project(%s)", bp.Solution)
	w.line("")
	w.line("set(CMAKE_VERBOSE_MAKEFILE ON)")
	w.line("set(CMAKE_COLOR_MAKEFILE ON)")
	w.linef("set(CMAKE_CONFIGURATION_TYPES \"%s\")", strings.Join(bp.Configurations, ";"))
	if c.config.BuildScriptsPath != "" {
		w.linef("set(CMAKE_MODULE_PATH %s)", quote(c.config.BuildScriptsPath))
	}
	w.linef("set(CMAKE_ARCHIVE_OUTPUT_DIRECTORY %s)", quote(bp.PublishRoot+"/$<CONFIG>/lib"))
	w.linef("set(CMAKE_LIBRARY_OUTPUT_DIRECTORY %s)", quote(bp.PublishRoot+"/$<CONFIG>/lib"))
	w.linef("set(CMAKE_RUNTIME_OUTPUT_DIRECTORY %s)", quote(bp.PublishRoot+"/$<CONFIG>/bin"))
	w.line("set_property(GLOBAL PROPERTY USE_FOLDERS ON)")
	w.line("")

	for _, pp := range bp.Projects {
		w.linef("add_subdirectory(%s)", pp.Name)
		if pp.Group != "" {
			w.linef("set_target_properties(%s PROPERTIES FOLDER %s)", pp.Name, pp.Group)
		}
	}
	return w.bytes()
}

// =============================================================================
// Project File
// =============================================================================

func (c *CMake) renderProject(bp *plan.BuildPlan, pp *plan.ProjectPlan) []byte {
	windows := bp.Platform.IsWindowsFamily()
	name := pp.Name

	var w lineWriter
	w.line(cmakeHeader)
	w.line("")
	w.linef("project(%s)", name)
	w.line("")
	w.linef("set(CMAKE_CXX_STANDARD %d)", c.config.CXXStandard)
	w.line("set(CMAKE_CXX_STANDARD_REQUIRED ON)")
	w.line("set(CMAKE_CXX_EXTENSIONS OFF)")
	w.linef("add_definitions(-DPROJECT_NAME=%s)", name)
	w.line("string(TOUPPER \"${CMAKE_BUILD_TYPE}\" uppercase_CMAKE_BUILD_TYPE)")

	if bp.Type.BuildAsLibs() {
		w.line("add_definitions(-DBUILD_AS_LIBS)")
	} else {
		w.linef("add_definitions(-D%s)", domain.ExportsMacro(name))
		if !pp.HasAttribute(domain.AttrApp) {
			w.line("add_definitions(-DBUILD_DLL)")
		}
	}

	w.line("set(CMAKE_EXE_LINKER_FLAGS_CHECKED \"${CMAKE_EXE_LINKER_FLAGS_RELEASE}\")")
	w.line("set(CMAKE_SHARED_LINKER_FLAGS_CHECKED \"${CMAKE_SHARED_LINKER_FLAGS_RELEASE}\")")
	w.line("set(CMAKE_CXX_FLAGS_DEBUG \"${CMAKE_CXX_FLAGS_DEBUG} -DBUILD_DEBUG -D_DEBUG -DDEBUG\")")
	w.line("set(CMAKE_CXX_FLAGS_CHECKED \"${CMAKE_CXX_FLAGS_CHECKED} -DBUILD_CHECKED -DNDEBUG\")")
	w.line("set(CMAKE_CXX_FLAGS_RELEASE \"${CMAKE_CXX_FLAGS_RELEASE} -DBUILD_RELEASE -DNDEBUG\")")

	if windows {
		w.line("add_definitions(-DUNICODE -D_UNICODE -D_WIN64 -D_WINDOWS -DWIN32_LEAN_AND_MEAN -DNOMINMAX)")
		w.line("add_definitions(-D_SILENCE_ALL_CXX17_DEPRECATION_WARNINGS)")
		if pp.HasAttribute(domain.AttrConsole) {
			w.line("add_definitions(-DCONSOLE)")
		}
	} else {
		w.line("set(CMAKE_CXX_FLAGS \"${CMAKE_CXX_FLAGS} -pthread -fno-exceptions\")")
		if !pp.HasAttribute(domain.AttrNoSymbols) {
			w.line("set(CMAKE_CXX_FLAGS \"${CMAKE_CXX_FLAGS} -g\")")
		}
		w.line("set(CMAKE_CXX_FLAGS_DEBUG \"${CMAKE_CXX_FLAGS_DEBUG} -O0 -fstack-protector-all\")")
		w.line("set(CMAKE_CXX_FLAGS_CHECKED \"${CMAKE_CXX_FLAGS_CHECKED} -O2 -fstack-protector-all\")")
		w.line("set(CMAKE_CXX_FLAGS_RELEASE \"${CMAKE_CXX_FLAGS_RELEASE} -O3 -fno-stack-protector\")")
	}

	if bp.Type.IsFinal() {
		w.line("add_definitions(-DBUILD_FINAL)")
	} else {
		w.line("add_definitions(-DBUILD_DEV)")
	}
	w.line("")

	w.line("# Project include directories")
	for _, root := range pp.SourceRoots {
		w.linef("include_directories(%s)", quote(root))
	}
	w.line("")

	w.line("# Project library includes")
	c.writeLibraries(&w, bp, pp)
	w.line("")

	w.line("# Project files")
	c.writeFiles(&w, pp)
	w.line("")

	w.line("# Project output")
	switch {
	case pp.Kind == domain.KindApp && windows:
		w.linef("add_executable(%s WIN32 ${FILE_SOURCES} ${FILE_HEADERS})", name)
	case pp.Kind == domain.KindApp || pp.Kind == domain.KindConsole:
		w.linef("add_executable(%s ${FILE_SOURCES} ${FILE_HEADERS})", name)
	case windows && !bp.Type.BuildAsLibs():
		w.linef("add_library(%s SHARED ${FILE_SOURCES} ${FILE_HEADERS})", name)
	default:
		w.linef("add_library(%s ${FILE_SOURCES} ${FILE_HEADERS})", name)
	}
	w.line("")

	w.line("# Project dependencies")
	for _, dep := range pp.ProjectLinks() {
		w.linef("target_link_libraries(%s %s)", name, dep)
	}
	for _, sl := range systemLibraries(bp, pp) {
		if sl.LibraryFilesVar != "" {
			w.linef("target_link_libraries(%s ${%s})", name, sl.LibraryFilesVar)
		}
	}
	w.line("")

	if bp.Platform == domain.PlatformLinux {
		w.line("# Hardcoded system libraries")
		w.linef("target_link_libraries(%s dl rt)", name)
		w.line("")
	}

	if windows {
		w.line("# Precompiled header setup")
		for _, f := range pp.Sources {
			switch {
			case f.PCH == domain.PCHDisable:
			case f.IsPCHGenerator():
				w.linef("set_source_files_properties(%s PROPERTIES COMPILE_FLAGS \"/Ycbuild.h\")", quote(f.Path))
			default:
				w.linef("set_source_files_properties(%s PROPERTIES COMPILE_FLAGS \"/Yubuild.h\")", quote(f.Path))
			}
		}
		w.line("")
	}

	return w.bytes()
}

// writeLibraries emits include and link wiring for the plan's platform, in
// configuration order, followed by system library imports.
func (c *CMake) writeLibraries(w *lineWriter, bp *plan.BuildPlan, pp *plan.ProjectPlan) {
	for _, lib := range pp.Libraries {
		// Checked and release share the optimized mode; emit each pair once.
		linked := make(map[string]bool)
		for _, configuration := range bp.Configurations {
			s, ok := lib.ForTarget(bp.Platform, configuration)
			if !ok {
				continue
			}
			for _, inc := range s.Includes {
				w.linef("include_directories(%s)", quote(inc))
			}
			for _, l := range s.Links {
				mode := "optimized"
				if l.Mode == matrix.LinkDebug {
					mode = "debug"
				}
				directive := fmt.Sprintf("link_libraries(%s %s)", mode, quote(l.Path))
				if linked[directive] {
					continue
				}
				linked[directive] = true
				w.line(directive)
			}
		}
	}

	libs := systemLibraries(bp, pp)
	if len(libs) == 0 {
		return
	}
	w.line("# Link with system libraries")
	for _, sl := range libs {
		w.linef("find_package(%s)", sl.Name)
		if sl.IncludeDirsVar != "" {
			w.linef("include_directories(${%s})", sl.IncludeDirsVar)
		}
		if sl.IncludeFile != "" {
			w.linef("include(${%s})", sl.IncludeFile)
		}
		if sl.LinkDirsVar != "" {
			w.linef("link_directories(${%s})", sl.LinkDirsVar)
		}
		if sl.DefinitionsVar != "" {
			w.linef("set(CMAKE_CXX_FLAGS \"${CMAKE_CXX_FLAGS} ${%s}\")", sl.DefinitionsVar)
		}
		if sl.Flags != "" {
			w.linef("set(CMAKE_CXX_FLAGS \"${CMAKE_CXX_FLAGS} %s\")", sl.Flags)
		}
	}
}

// systemLibraries collects the system libraries of every library on the plan
// platform, first occurrence of a name wins.
func systemLibraries(bp *plan.BuildPlan, pp *plan.ProjectPlan) []domain.SystemLibrary {
	seen := make(map[string]bool)
	var out []domain.SystemLibrary
	for _, lib := range pp.Libraries {
		for _, configuration := range bp.Configurations {
			s, ok := lib.ForTarget(bp.Platform, configuration)
			if !ok {
				continue
			}
			for _, sl := range s.State.SystemLibraries {
				if seen[sl.Name] {
					continue
				}
				seen[sl.Name] = true
				out = append(out, sl)
			}
		}
	}
	return out
}

func (c *CMake) writeFiles(w *lineWriter, pp *plan.ProjectPlan) {
	for _, f := range pp.Sources {
		if !f.Generated {
			w.linef("list(APPEND FILE_SOURCES %s)", quote(f.Path))
		}
	}
	for _, f := range pp.Headers {
		if !f.Generated {
			w.linef("list(APPEND FILE_HEADERS %s)", quote(f.Path))
		}
	}

	for _, step := range pp.Steps {
		outputs := make([]string, 0, len(step.Outputs))
		for _, o := range step.Outputs {
			outputs = append(outputs, quote(o.Path))
		}
		switch step.Kind {
		case steps.StepInterfaceCompile:
			w.linef("add_custom_command(OUTPUT %s COMMAND %s --proto_path=%s --cpp_out=%s %s DEPENDS %s)",
				strings.Join(outputs, " "), step.Tool, quote(step.IncludeRoot), quote(step.OutputRoot), quote(step.Input), quote(step.Input))
		case steps.StepGrammarCompile:
			w.linef("add_custom_command(OUTPUT %s COMMAND java -cp %s org.antlr.v4.Tool %s -o %s -Dlanguage=Cpp DEPENDS %s)",
				strings.Join(outputs, " "), step.Tool, quote(step.Input), quote(step.OutputRoot), quote(step.Input))
		case steps.StepReflectionGlue:
			w.line("# Generated reflection file")
		}
		for _, o := range step.Outputs {
			list := "FILE_HEADERS"
			if o.Type == domain.FileSource {
				list = "FILE_SOURCES"
			}
			w.linef("list(APPEND %s %s)", list, quote(o.Path))
		}
	}
}

// =============================================================================
// Helpers
// =============================================================================

type lineWriter struct {
	b strings.Builder
}

func (w *lineWriter) line(s string) {
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func (w *lineWriter) linef(format string, args ...any) {
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteByte('\n')
}

func (w *lineWriter) bytes() []byte {
	return []byte(w.b.String())
}

func quote(p string) string {
	return "\"" + filepath.ToSlash(p) + "\""
}
