package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/artpar/buildgen/internal/core/domain"
)

// Format is a manifest encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatFor selects the format from a file extension.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".hcl":
		return FormatHCL, true
	default:
		return "", false
	}
}

// Load reads and converts the manifest at path.
func Load(path string) (*domain.Solution, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, NewLoadError(path, "", fmt.Sprintf("extension %q is not .yaml, .yml or .hcl", filepath.Ext(path)), ErrUnsupportedFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewLoadError(path, "", err.Error(), ErrReadFailed)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, NewLoadError(path, "", err.Error(), ErrReadFailed)
	}
	return Parse(data, format, abs)
}

// Parse decodes manifest bytes. path names the manifest for error messages and
// its directory anchors relative paths.
func Parse(data []byte, format Format, path string) (*domain.Solution, error) {
	var doc document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, NewLoadError(path, "", err.Error(), ErrInvalidManifest)
		}
	case FormatHCL:
		file, diags := hclparse.NewParser().ParseHCL(data, path)
		if diags.HasErrors() {
			return nil, NewLoadError(path, "", diags.Error(), ErrInvalidManifest)
		}
		if diags := gohcl.DecodeBody(file.Body, evalContext(filepath.Dir(path)), &doc); diags.HasErrors() {
			return nil, NewLoadError(path, "", diags.Error(), ErrInvalidManifest)
		}
	default:
		return nil, NewLoadError(path, "", fmt.Sprintf("format %q", format), ErrUnsupportedFormat)
	}

	c := converter{path: path, baseDir: filepath.Dir(path)}
	return c.solution(doc)
}

// evalContext exposes the process environment as env.NAME and the manifest
// directory as manifest_dir to HCL expressions.
func evalContext(manifestDir string) *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":          cty.ObjectVal(env),
			"manifest_dir": cty.StringVal(manifestDir),
		},
	}
}

// =============================================================================
// Conversion
// =============================================================================

type converter struct {
	path    string
	baseDir string
}

func (c *converter) invalid(field, format string, args ...any) error {
	return NewLoadError(c.path, field, fmt.Sprintf(format, args...), ErrInvalidManifest)
}

// abs resolves p against the manifest directory and cleans it.
func (c *converter) abs(p string) string {
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.baseDir, p)
	}
	return filepath.Clean(p)
}

func (c *converter) absAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, c.abs(p))
	}
	return out
}

func (c *converter) platforms(field string, names []string) ([]domain.PlatformType, error) {
	var out []domain.PlatformType
	for i, name := range names {
		p, ok := domain.ParsePlatform(name)
		if !ok {
			return nil, c.invalid(fmt.Sprintf("%s[%d]", field, i), "unknown platform %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *converter) solution(doc document) (*domain.Solution, error) {
	platform, ok := domain.ParsePlatform(doc.Platform)
	if !ok {
		return nil, c.invalid("platform", "unknown platform %q", doc.Platform)
	}
	platforms, err := c.platforms("platforms", doc.Platforms)
	if err != nil {
		return nil, err
	}
	if len(platforms) == 0 {
		platforms = []domain.PlatformType{platform}
	}

	solutionType := domain.DefaultSolutionType()
	if doc.LibraryType != "" {
		t, ok := domain.ParseLibraryType(doc.LibraryType)
		if !ok {
			return nil, c.invalid("library_type", "unknown library type %q", doc.LibraryType)
		}
		solutionType.Libraries = t
	}
	if doc.BuildType != "" {
		t, ok := domain.ParseBuildType(doc.BuildType)
		if !ok {
			return nil, c.invalid("build_type", "unknown build type %q", doc.BuildType)
		}
		solutionType.Build = t
	}

	s := &domain.Solution{
		Name:             doc.Solution,
		Platform:         platform,
		Type:             solutionType,
		Platforms:        platforms,
		Configurations:   append([]string(nil), doc.Configurations...),
		DisabledProjects: append([]string(nil), doc.DisabledProjects...),
	}

	for i, ld := range doc.Libraries {
		lib, err := c.library(fmt.Sprintf("libraries[%d]", i), ld)
		if err != nil {
			return nil, err
		}
		s.Libraries = append(s.Libraries, lib)
	}
	for i, pd := range doc.Projects {
		p, err := c.project(fmt.Sprintf("projects[%d]", i), pd)
		if err != nil {
			return nil, err
		}
		s.Projects = append(s.Projects, p)
	}
	return s, nil
}

func (c *converter) project(field string, pd projectDoc) (*domain.Project, error) {
	p := &domain.Project{
		Name:        pd.Name,
		Group:       pd.Group,
		SourceRoots: c.absAll(pd.SourceDirs),
	}
	if len(pd.Attributes) > 0 {
		p.Attributes = make(map[string]bool, len(pd.Attributes))
		for _, a := range pd.Attributes {
			p.Attributes[strings.ToLower(strings.TrimSpace(a))] = true
		}
	}

	for _, target := range pd.Links {
		p.Dependencies = append(p.Dependencies, domain.Dependency{Type: domain.DependencyProjectLink, Target: target})
	}
	for _, target := range pd.PublicLibraries {
		p.Dependencies = append(p.Dependencies, domain.Dependency{Type: domain.DependencyPublicLibrary, Target: target})
	}
	for _, target := range pd.PrivateLibraries {
		p.Dependencies = append(p.Dependencies, domain.Dependency{Type: domain.DependencyPrivateLibrary, Target: target})
	}

	declared := make(map[string]bool)
	for i, fd := range pd.Files {
		f, err := c.file(fmt.Sprintf("%s.files[%d]", field, i), fd)
		if err != nil {
			return nil, err
		}
		declared[f.Path] = true
		p.Files = append(p.Files, f)
	}

	for i, dir := range p.SourceRoots {
		found, err := Discover(dir)
		if err != nil {
			return nil, NewLoadError(c.path, fmt.Sprintf("%s.source_dirs[%d]", field, i), err.Error(), ErrInvalidManifest)
		}
		for _, f := range found {
			if declared[f.Path] {
				continue
			}
			declared[f.Path] = true
			p.Files = append(p.Files, f)
		}
	}
	return p, nil
}

func (c *converter) file(field string, fd fileDoc) (domain.File, error) {
	path := c.abs(fd.Path)
	if path == "" {
		return domain.File{}, c.invalid(field, "file path is required")
	}

	var fileType domain.FileType
	if fd.Type != "" {
		fileType = domain.FileType(strings.ToLower(fd.Type))
		if !fileType.IsValid() {
			return domain.File{}, c.invalid(field, "unknown file type %q", fd.Type)
		}
	} else {
		t, ok := domain.ClassifyPath(path)
		if !ok {
			return domain.File{}, c.invalid(field, "cannot infer file type of %q", fd.Path)
		}
		fileType = t
	}

	platforms, err := c.platforms(field+".platforms", fd.Platforms)
	if err != nil {
		return domain.File{}, err
	}

	pch := domain.PCHMode(strings.ToLower(fd.PCH))
	switch pch {
	case domain.PCHDefault, domain.PCHGenerate, domain.PCHDisable:
	case "disabled":
		pch = domain.PCHDisable
	default:
		return domain.File{}, c.invalid(field+".pch", "unknown pch mode %q", fd.PCH)
	}

	return domain.File{
		Path:       path,
		Type:       fileType,
		Platforms:  platforms,
		PCH:        pch,
		Reflection: fd.Reflection,
	}, nil
}

func (c *converter) library(field string, ld libraryDoc) (*domain.Library, error) {
	lib := &domain.Library{Name: ld.Name, Path: c.abs(ld.Path)}
	libDir := lib.Path

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(libDir, p)
	}

	for i, l := range ld.Layers {
		layerField := fmt.Sprintf("%s.layers[%d]", field, i)
		layer := domain.ConfigLayer{Configuration: l.Configuration}
		if l.Platform != "" {
			p, ok := domain.ParsePlatform(l.Platform)
			if !ok {
				return nil, c.invalid(layerField+".platform", "unknown platform %q", l.Platform)
			}
			layer.Platform = p
		}
		for _, p := range l.IncludePaths {
			layer.IncludePaths = append(layer.IncludePaths, resolve(p))
		}
		for _, p := range l.LinkPaths {
			layer.LinkPaths = append(layer.LinkPaths, resolve(p))
		}
		for j, d := range l.Deploy {
			if d.Source == "" || d.Target == "" {
				return nil, c.invalid(fmt.Sprintf("%s.deploy[%d]", layerField, j), "deploy needs source and target")
			}
			layer.DeployFiles = append(layer.DeployFiles, domain.DeployMapping{
				SourcePath: resolve(d.Source),
				TargetPath: filepath.ToSlash(d.Target),
			})
		}
		for _, sl := range l.SystemLibraries {
			layer.SystemLibraries = append(layer.SystemLibraries, domain.SystemLibrary{
				Name:            sl.Name,
				IncludeDirsVar:  sl.IncludeDirsVar,
				IncludeFile:     sl.IncludeFile,
				LinkDirsVar:     sl.LinkDirsVar,
				LibraryFilesVar: sl.LibraryFilesVar,
				DefinitionsVar:  sl.DefinitionsVar,
				Flags:           sl.Flags,
			})
		}
		lib.Config.Layers = append(lib.Config.Layers, layer)
	}
	return lib, nil
}
