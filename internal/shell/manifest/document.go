package manifest

// document is the on-disk manifest shape shared by the YAML and HCL decoders.
//
// YAML:
//
//	solution: engine
//	platform: linux
//	configurations: [Debug, Release]
//	projects:
//	  - name: core
//	    source_dirs: [src/core]
//	    public_libraries: [zlib]
//	libraries:
//	  - name: zlib
//	    path: third_party/zlib
//	    layers:
//	      - include_paths: [include]
//
// HCL:
//
//	solution       = "engine"
//	platform       = "linux"
//	configurations = ["Debug", "Release"]
//
//	project "core" {
//	  source_dirs      = ["src/core"]
//	  public_libraries = ["zlib"]
//	}
//
//	library "zlib" {
//	  path = "${env.ZLIB_ROOT}"
//	  layer {
//	    include_paths = ["include"]
//	  }
//	}
type document struct {
	Solution         string       `yaml:"solution" hcl:"solution"`
	Platform         string       `yaml:"platform" hcl:"platform"`
	Platforms        []string     `yaml:"platforms" hcl:"platforms,optional"`
	Configurations   []string     `yaml:"configurations" hcl:"configurations"`
	LibraryType      string       `yaml:"library_type" hcl:"library_type,optional"`
	BuildType        string       `yaml:"build_type" hcl:"build_type,optional"`
	DisabledProjects []string     `yaml:"disabled_projects" hcl:"disabled_projects,optional"`
	Projects         []projectDoc `yaml:"projects" hcl:"project,block"`
	Libraries        []libraryDoc `yaml:"libraries" hcl:"library,block"`
}

type projectDoc struct {
	Name             string    `yaml:"name" hcl:"name,label"`
	Group            string    `yaml:"group" hcl:"group,optional"`
	SourceDirs       []string  `yaml:"source_dirs" hcl:"source_dirs,optional"`
	Attributes       []string  `yaml:"attributes" hcl:"attributes,optional"`
	Links            []string  `yaml:"links" hcl:"links,optional"`
	PublicLibraries  []string  `yaml:"public_libraries" hcl:"public_libraries,optional"`
	PrivateLibraries []string  `yaml:"private_libraries" hcl:"private_libraries,optional"`
	Files            []fileDoc `yaml:"files" hcl:"file,block"`
}

type fileDoc struct {
	Path       string   `yaml:"path" hcl:"path,label"`
	Type       string   `yaml:"type" hcl:"type,optional"`
	Platforms  []string `yaml:"platforms" hcl:"platforms,optional"`
	PCH        string   `yaml:"pch" hcl:"pch,optional"`
	Reflection bool     `yaml:"reflection" hcl:"reflection,optional"`
}

type libraryDoc struct {
	Name   string     `yaml:"name" hcl:"name,label"`
	Path   string     `yaml:"path" hcl:"path"`
	Layers []layerDoc `yaml:"layers" hcl:"layer,block"`
}

type layerDoc struct {
	Platform        string             `yaml:"platform" hcl:"platform,optional"`
	Configuration   string             `yaml:"configuration" hcl:"configuration,optional"`
	IncludePaths    []string           `yaml:"include_paths" hcl:"include_paths,optional"`
	LinkPaths       []string           `yaml:"link_paths" hcl:"link_paths,optional"`
	Deploy          []deployDoc        `yaml:"deploy" hcl:"deploy,block"`
	SystemLibraries []systemLibraryDoc `yaml:"system_libraries" hcl:"system_library,block"`
}

type deployDoc struct {
	Source string `yaml:"source" hcl:"source"`
	Target string `yaml:"target" hcl:"target"`
}

type systemLibraryDoc struct {
	Name            string `yaml:"name" hcl:"name,label"`
	IncludeDirsVar  string `yaml:"include_dirs_var" hcl:"include_dirs_var,optional"`
	IncludeFile     string `yaml:"include_file" hcl:"include_file,optional"`
	LinkDirsVar     string `yaml:"link_dirs_var" hcl:"link_dirs_var,optional"`
	LibraryFilesVar string `yaml:"library_files_var" hcl:"library_files_var,optional"`
	DefinitionsVar  string `yaml:"definitions_var" hcl:"definitions_var,optional"`
	Flags           string `yaml:"flags" hcl:"flags,optional"`
}
