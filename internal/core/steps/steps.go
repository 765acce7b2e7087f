// Package steps plans the derived build actions a project needs for inputs
// that are not plain sources: interface compilation, grammar compilation and
// reflection glue. This is part of the Functional Core - all functions are
// pure with no I/O.
package steps

import (
	"path"
	"path/filepath"

	"github.com/artpar/buildgen/internal/core/domain"
)

// Kind identifies a derived build step.
type Kind string

const (
	StepInterfaceCompile Kind = "interface-compile"
	StepGrammarCompile   Kind = "grammar-compile"
	StepReflectionGlue   Kind = "reflection-glue"
)

// ReflectionFileName is the synthetic header holding reflection glue.
const ReflectionFileName = "reflection.inl"

// Tools names the external tools invoked by derived steps.
type Tools struct {
	InterfaceCompiler string `mapstructure:"protoc" json:"protoc"`
	GrammarCompiler   string `mapstructure:"antlr_jar" json:"antlr_jar"`
}

// DefaultTools returns tool identities as build-system variables.
func DefaultTools() Tools {
	return Tools{
		InterfaceCompiler: "${PROTOC_LOCATION}",
		GrammarCompiler:   "${ANTLR4CPP_JAR_LOCATION}",
	}
}

// Step is one derived code-generation action.
type Step struct {
	Kind        Kind          `json:"kind"`
	Tool        string        `json:"tool,omitempty"`
	Input       string        `json:"input,omitempty"`
	IncludeRoot string        `json:"include_root,omitempty"`
	OutputRoot  string        `json:"output_root"`
	Outputs     []domain.File `json:"outputs"`

	// External steps are produced outside the generated build; the plan only
	// reserves their outputs.
	External bool `json:"external,omitempty"`
}

// Plan is the effective file set of a project on one platform.
type Plan struct {
	GeneratedDir string        `json:"generated_dir"`
	Steps        []Step        `json:"steps"`
	Sources      []domain.File `json:"sources"`
	Headers      []domain.File `json:"headers"`
}

// =============================================================================
// Planner
// =============================================================================

// Planner derives build steps from a project's declared files.
type Planner struct {
	Tools         Tools
	GeneratedRoot string
}

// GeneratedDir returns the generated-output directory of a project.
func (p *Planner) GeneratedDir(project *domain.Project) string {
	return path.Join(filepath.ToSlash(p.GeneratedRoot), project.Name)
}

// Plan computes the derived steps and effective file lists of project for
// platform.
//
// Declared sources and headers keep declaration order, except that the
// precompiled-header generator (build.cpp) moves to the front. Generated files
// follow all declared ones, grouped by originating file in declaration order.
// A reflection glue header, when required, is appended last.
//
// Example:
//
//	// declared: [A.proto, B.cpp, C.g4]
//	plan.Sources // [B.cpp, A.pb.cc, CLexer.cpp, CParser.cpp]
//	plan.Headers // [A.pb.h, CLexer.h, CParser.h, CListener.h]
func (p *Planner) Plan(project *domain.Project, platform domain.PlatformType) Plan {
	genDir := p.GeneratedDir(project)
	plan := Plan{
		GeneratedDir: genDir,
		Steps:        []Step{},
		Sources:      []domain.File{},
		Headers:      []domain.File{},
	}

	var pch []domain.File
	for _, f := range project.Files {
		if !f.AppliesTo(platform) {
			continue
		}
		switch f.Type {
		case domain.FileSource:
			if f.IsPCHGenerator() {
				pch = append(pch, f)
			} else {
				plan.Sources = append(plan.Sources, f)
			}
		case domain.FileHeader:
			plan.Headers = append(plan.Headers, f)
		case domain.FileInterfaceDefinition:
			plan.Steps = append(plan.Steps, p.interfaceStep(f, genDir))
		case domain.FileGrammar:
			plan.Steps = append(plan.Steps, p.grammarStep(f, genDir))
		}
	}
	plan.Sources = append(pch, plan.Sources...)

	if project.RequiresReflection() {
		plan.Steps = append(plan.Steps, Step{
			Kind:       StepReflectionGlue,
			OutputRoot: genDir,
			Outputs:    []domain.File{domain.NewGeneratedFile(path.Join(genDir, ReflectionFileName), domain.FileHeader)},
			External:   true,
		})
	}

	for _, s := range plan.Steps {
		for _, out := range s.Outputs {
			if out.Type == domain.FileSource {
				plan.Sources = append(plan.Sources, out)
			} else {
				plan.Headers = append(plan.Headers, out)
			}
		}
	}

	return plan
}

func (p *Planner) interfaceStep(f domain.File, genDir string) Step {
	base := f.CoreName()
	return Step{
		Kind:        StepInterfaceCompile,
		Tool:        p.Tools.InterfaceCompiler,
		Input:       filepath.ToSlash(f.Path),
		IncludeRoot: path.Dir(filepath.ToSlash(f.Path)),
		OutputRoot:  genDir,
		Outputs: []domain.File{
			domain.NewGeneratedFile(path.Join(genDir, base+".pb.cc"), domain.FileSource),
			domain.NewGeneratedFile(path.Join(genDir, base+".pb.h"), domain.FileHeader),
		},
	}
}

func (p *Planner) grammarStep(f domain.File, genDir string) Step {
	base := f.CoreName()
	return Step{
		Kind:       StepGrammarCompile,
		Tool:       p.Tools.GrammarCompiler,
		Input:      filepath.ToSlash(f.Path),
		OutputRoot: genDir,
		Outputs: []domain.File{
			domain.NewGeneratedFile(path.Join(genDir, base+"Lexer.h"), domain.FileHeader),
			domain.NewGeneratedFile(path.Join(genDir, base+"Lexer.cpp"), domain.FileSource),
			domain.NewGeneratedFile(path.Join(genDir, base+"Parser.h"), domain.FileHeader),
			domain.NewGeneratedFile(path.Join(genDir, base+"Parser.cpp"), domain.FileSource),
			domain.NewGeneratedFile(path.Join(genDir, base+"Listener.h"), domain.FileHeader),
		},
	}
}
