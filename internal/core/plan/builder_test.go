package plan

import (
	"encoding/json"
	"testing"

	"github.com/artpar/buildgen/internal/core/dependency"
	"github.com/artpar/buildgen/internal/core/diag"
	"github.com/artpar/buildgen/internal/core/domain"
	"github.com/artpar/buildgen/internal/core/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stat(paths ...string) matrix.FileStat {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return matrix.FileStatFunc(func(path string) bool { return set[path] })
}

func defaultOptions() Options {
	return Options{PublishRoot: "/out/publish", GeneratedRoot: "/out/generated"}
}

func sampleSolution() *domain.Solution {
	return &domain.Solution{
		Name:           "engine",
		Platform:       domain.PlatformLinux,
		Type:           domain.DefaultSolutionType(),
		Platforms:      []domain.PlatformType{domain.PlatformLinux},
		Configurations: []string{"Debug", "Release"},
		Projects: []*domain.Project{
			{
				Name:         "app",
				Attributes:   map[string]bool{domain.AttrApp: true},
				Files:        []domain.File{{Path: "/src/app/main.cpp", Type: domain.FileSource}},
				Dependencies: []domain.Dependency{{Type: domain.DependencyProjectLink, Target: "render"}},
			},
			{
				Name: "render",
				Files: []domain.File{
					{Path: "/src/render/Shaders.proto", Type: domain.FileInterfaceDefinition},
					{Path: "/src/render/render.cpp", Type: domain.FileSource},
				},
				Dependencies: []domain.Dependency{
					{Type: domain.DependencyProjectLink, Target: "core"},
					{Type: domain.DependencyPrivateLibrary, Target: "vulkan"},
				},
			},
			{
				Name:         "core",
				Files:        []domain.File{{Path: "/src/core/core.cpp", Type: domain.FileSource}},
				Dependencies: []domain.Dependency{{Type: domain.DependencyPublicLibrary, Target: "zlib"}},
			},
		},
		Libraries: []*domain.Library{
			{Name: "zlib", Path: "/libs/zlib", Config: domain.Config{Layers: []domain.ConfigLayer{
				{IncludePaths: []string{"/libs/zlib/include"}},
				{Configuration: "Debug", LinkPaths: []string{"/libs/zlib/lib/zlibd.a"}},
				{Configuration: "Release", LinkPaths: []string{"/libs/zlib/lib/zlib.a"}},
				{DeployFiles: []domain.DeployMapping{{SourcePath: "/libs/zlib/bin/zlib.so", TargetPath: "bin/zlib.so"}}},
			}}},
			{Name: "vulkan", Path: "/libs/vulkan", Config: domain.Config{Layers: []domain.ConfigLayer{
				{IncludePaths: []string{"/libs/vulkan/include"}},
				{LinkPaths: []string{"/libs/vulkan/lib/vulkan.a"}},
			}}},
		},
	}
}

// =============================================================================
// Build Tests
// =============================================================================

func TestBuild_Assembles(t *testing.T) {
	bp, err := Build(sampleSolution(), defaultOptions(), stat("/libs/zlib/lib/zlibd.a", "/libs/zlib/lib/zlib.a"))
	require.NoError(t, err)

	var names []string
	for _, p := range bp.Projects {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"core", "render", "app"}, names)
	assert.Equal(t, "Release", bp.IncludeConfiguration)

	app, ok := bp.Project("app")
	require.True(t, ok)
	assert.Equal(t, domain.KindApp, app.Kind)
	assert.Equal(t, []string{"core", "render"}, app.ProjectLinks())
	require.Len(t, app.Libraries, 1, "private vulkan must not reach app")
	assert.Equal(t, "zlib", app.Libraries[0].Name)

	render, ok := bp.Project("render")
	require.True(t, ok)
	require.Len(t, render.Libraries, 2)
	assert.Equal(t, "vulkan", render.Libraries[0].Name)
	assert.Equal(t, "zlib", render.Libraries[1].Name)
	require.Len(t, render.Steps, 1)
	assert.Equal(t, "/out/generated/render/Shaders.pb.cc", render.Sources[1].Path)

	// vulkan's link path is missing: one diagnostic per target.
	require.Len(t, bp.Diagnostics, 2)
	for _, d := range bp.Diagnostics {
		assert.Equal(t, diag.KindMissingLinkPath, d.Kind)
		assert.Equal(t, "vulkan", d.Library)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	fs := stat("/libs/zlib/lib/zlib.a")

	first, err := Build(sampleSolution(), defaultOptions(), fs)
	require.NoError(t, err)
	want, err := json.Marshal(first)
	require.NoError(t, err)

	for _, parallelism := range []int{1, 2, 8} {
		opts := defaultOptions()
		opts.Parallelism = parallelism
		again, err := Build(sampleSolution(), opts, fs)
		require.NoError(t, err)
		got, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), "parallelism %d", parallelism)
	}
}

func TestBuild_Deployments(t *testing.T) {
	s := sampleSolution()
	s.Platforms = []domain.PlatformType{domain.PlatformLinux, domain.PlatformAndroid}

	bp, err := Build(s, defaultOptions(), stat())
	require.NoError(t, err)

	// zlib reaches all three projects on two platforms, but each
	// (configuration, target) pair is copied once.
	assert.Equal(t, []DeployAction{
		{Library: "zlib", Configuration: "Debug", SourcePath: "/libs/zlib/bin/zlib.so", TargetPath: "bin/zlib.so"},
		{Library: "zlib", Configuration: "Release", SourcePath: "/libs/zlib/bin/zlib.so", TargetPath: "bin/zlib.so"},
	}, bp.Deployments())

	core, _ := bp.Project("core")
	assert.Len(t, core.Deployments, 2)
}

func TestBuild_SkipsDisabledProjects(t *testing.T) {
	s := sampleSolution()
	s.DisabledProjects = []string{"render"}

	bp, err := Build(s, defaultOptions(), stat())
	require.NoError(t, err)

	_, ok := bp.Project("render")
	assert.False(t, ok)

	app, ok := bp.Project("app")
	require.True(t, ok)
	assert.Empty(t, app.LinkOrder)
}

// =============================================================================
// Fatal Error Tests
// =============================================================================

func TestBuild_InvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing publish root", Options{GeneratedRoot: "/g"}},
		{"missing generated root", Options{PublishRoot: "/p"}},
		{"negative parallelism", Options{PublishRoot: "/p", GeneratedRoot: "/g", Parallelism: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp, err := Build(sampleSolution(), tt.opts, stat())
			assert.Nil(t, bp)
			assert.ErrorIs(t, err, ErrInvalidParameters)

			var perr *PhaseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, PhaseValidate, perr.Phase)
		})
	}

	_, err := Build(nil, defaultOptions(), stat())
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestBuild_MalformedSolution(t *testing.T) {
	s := sampleSolution()
	s.Projects[0].Dependencies = append(s.Projects[0].Dependencies, domain.Dependency{Type: domain.DependencyProjectLink, Target: "ghost"})

	bp, err := Build(s, defaultOptions(), stat())
	assert.Nil(t, bp)
	assert.ErrorIs(t, err, domain.ErrUnknownProject)
}

func TestBuild_CycleIsFatal(t *testing.T) {
	s := sampleSolution()
	core, _ := s.Project("core")
	core.Dependencies = append(core.Dependencies, domain.Dependency{Type: domain.DependencyProjectLink, Target: "app"})

	bp, err := Build(s, defaultOptions(), stat())
	assert.Nil(t, bp)
	assert.ErrorIs(t, err, dependency.ErrCyclicDependency)

	var perr *PhaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseResolve, perr.Phase)
	assert.Contains(t, err.Error(), "resolve phase")
}
