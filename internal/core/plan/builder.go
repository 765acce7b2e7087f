package plan

import (
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/artpar/buildgen/internal/core/dependency"
	"github.com/artpar/buildgen/internal/core/diag"
	"github.com/artpar/buildgen/internal/core/domain"
	"github.com/artpar/buildgen/internal/core/matrix"
	"github.com/artpar/buildgen/internal/core/steps"
)

// Options are the top-level generation parameters.
type Options struct {
	PublishRoot   string
	GeneratedRoot string
	Tools         steps.Tools

	// Parallelism bounds concurrent project planning. Zero uses GOMAXPROCS,
	// one plans sequentially.
	Parallelism int
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.PublishRoot == "" {
		return fmt.Errorf("%w: publish root is required", ErrInvalidParameters)
	}
	if o.GeneratedRoot == "" {
		return fmt.Errorf("%w: generated root is required", ErrInvalidParameters)
	}
	if o.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative", ErrInvalidParameters)
	}
	return nil
}

// Build resolves a solution into a BuildPlan.
//
// Fatal conditions (bad options, a malformed solution, a dependency cycle)
// return a *PhaseError and no plan. Recoverable conditions are collected in
// BuildPlan.Diagnostics. The same solution and filesystem state always give
// an identical plan, whatever the parallelism.
//
// Example:
//
//	bp, err := plan.Build(solution, plan.Options{PublishRoot: "publish", GeneratedRoot: "generated"}, stat)
//	if err != nil {
//	    return err // *PhaseError
//	}
//	for _, d := range bp.Diagnostics { ... }
func Build(solution *domain.Solution, opts Options, stat matrix.FileStat) (*BuildPlan, error) {
	if solution == nil {
		return nil, newPhaseError(PhaseValidate, "", fmt.Errorf("%w: solution is required", ErrInvalidParameters))
	}
	if stat == nil {
		return nil, newPhaseError(PhaseValidate, "", fmt.Errorf("%w: file stat is required", ErrInvalidParameters))
	}
	if err := opts.Validate(); err != nil {
		return nil, newPhaseError(PhaseValidate, "", err)
	}
	if err := solution.Validate(); err != nil {
		return nil, newPhaseError(PhaseValidate, "", err)
	}

	resolver := dependency.NewResolver(solution)
	if err := resolver.CheckCycles(); err != nil {
		return nil, newPhaseError(PhaseResolve, "", err)
	}
	projects, err := resolver.ProjectOrder()
	if err != nil {
		return nil, newPhaseError(PhaseResolve, "", err)
	}

	b := &builder{
		solution: solution,
		opts:     opts,
		resolver: resolver,
		matrix:   matrix.NewResolver(stat, solution.Configurations),
		planner:  &steps.Planner{Tools: opts.Tools, GeneratedRoot: opts.GeneratedRoot},
		targets:  solution.Targets(),
	}

	tables, diagnostics, err := b.resolveLibraries(projects)
	if err != nil {
		return nil, err
	}
	b.tables = tables

	results := make([]ProjectPlan, len(projects))
	var g errgroup.Group
	g.SetLimit(opts.parallelism())
	for i, p := range projects {
		i, p := i, p
		g.Go(func() error {
			pp, err := b.planProject(p)
			if err != nil {
				return err
			}
			results[i] = pp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &BuildPlan{
		Solution:             solution.Name,
		Platform:             solution.Platform,
		Type:                 solution.Type,
		Platforms:            append([]domain.PlatformType(nil), solution.Platforms...),
		Configurations:       append([]string(nil), solution.Configurations...),
		IncludeConfiguration: matrix.IncludeConfiguration(solution.Configurations),
		PublishRoot:          opts.PublishRoot,
		GeneratedRoot:        opts.GeneratedRoot,
		Projects:             results,
		Diagnostics:          diagnostics,
	}, nil
}

func (o Options) parallelism() int {
	if o.Parallelism == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Parallelism
}

// =============================================================================
// Builder
// =============================================================================

type builder struct {
	solution *domain.Solution
	opts     Options
	resolver *dependency.Resolver
	matrix   *matrix.Resolver
	planner  *steps.Planner
	targets  []domain.Target

	// tables is read-only once project planning starts.
	tables map[string]LibrarySettings
}

// resolveLibraries resolves every library visible to an enabled project once
// per target, so a library shared by many projects reports its diagnostics once.
func (b *builder) resolveLibraries(projects []*domain.Project) (map[string]LibrarySettings, []diag.Diagnostic, error) {
	used := make(map[string]*domain.Library)
	for _, p := range projects {
		libs, err := b.resolver.InternalLibraries(p.Name)
		if err != nil {
			return nil, nil, newPhaseError(PhaseResolve, p.Name, err)
		}
		for _, l := range libs {
			used[l.Name] = l
		}
	}

	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		x, y := used[names[i]], used[names[j]]
		if x.Path != y.Path {
			return x.Path < y.Path
		}
		return x.Name < y.Name
	})

	tables := make(map[string]LibrarySettings, len(used))
	diagnostics := []diag.Diagnostic{}
	for _, name := range names {
		lib := used[name]
		settings := b.matrix.ResolveAll(lib, b.targets)
		for _, s := range settings {
			diagnostics = append(diagnostics, s.Diagnostics...)
		}
		tables[name] = LibrarySettings{Name: lib.Name, Path: lib.Path, Targets: settings}
	}
	return tables, diagnostics, nil
}

func (b *builder) planProject(p *domain.Project) (ProjectPlan, error) {
	linkOrder, err := b.resolver.LinkOrder(p.Name)
	if err != nil {
		return ProjectPlan{}, newPhaseError(PhaseResolve, p.Name, err)
	}
	libs, err := b.resolver.InternalLibraries(p.Name)
	if err != nil {
		return ProjectPlan{}, newPhaseError(PhaseResolve, p.Name, err)
	}

	libraries := make([]LibrarySettings, 0, len(libs))
	deployments := []DeployAction{}
	seen := make(map[string]bool)
	for _, lib := range libs {
		table, ok := b.tables[lib.Name]
		if !ok {
			return ProjectPlan{}, newPhaseError(PhasePlan, p.Name, fmt.Errorf("library %s was not resolved", lib.Name))
		}
		libraries = append(libraries, table)

		for _, s := range table.Targets {
			for _, m := range s.State.DeployFiles {
				action := DeployAction{
					Library:       lib.Name,
					Configuration: s.Configuration,
					SourcePath:    m.SourcePath,
					TargetPath:    m.TargetPath,
				}
				if seen[action.key()] {
					continue
				}
				seen[action.key()] = true
				deployments = append(deployments, action)
			}
		}
	}

	fileset := b.planner.Plan(p, b.solution.Platform)

	attrs := make(map[string]bool, len(p.Attributes))
	for k, v := range p.Attributes {
		attrs[k] = v
	}

	return ProjectPlan{
		Name:         p.Name,
		GUID:         p.GUID(),
		Group:        p.Group,
		Kind:         p.Kind(),
		Attributes:   attrs,
		SourceRoots:  append([]string{}, p.SourceRoots...),
		LinkOrder:    linkOrder,
		Libraries:    libraries,
		Deployments:  deployments,
		GeneratedDir: fileset.GeneratedDir,
		Steps:        fileset.Steps,
		Sources:      fileset.Sources,
		Headers:      fileset.Headers,
	}, nil
}
