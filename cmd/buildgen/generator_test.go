package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/buildgen/internal/core/diag"
	"github.com/artpar/buildgen/internal/core/plan"
	"github.com/artpar/buildgen/internal/shell/deploy"
	"github.com/artpar/buildgen/internal/shell/journal"
	"github.com/artpar/buildgen/internal/shell/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
solution: engine
platform: linux
configurations: [Debug, Release]
projects:
  - name: core
    public_libraries: [zlib]
    files:
      - path: src/core/build.cpp
      - path: src/core/core.h
  - name: game
    attributes: [app]
    links: [core]
    files:
      - path: src/game/main.cpp
libraries:
  - name: zlib
    path: third_party/zlib
    layers:
      - include_paths: [include]
        deploy:
          - source: bin/libz.so
            target: bin/libz.so
      - configuration: Debug
        link_paths: [lib/libzd.a]
      - configuration: Release
        link_paths: [lib/libz.a, lib/missing.a]
`

// =============================================================================
// Test Helpers
// =============================================================================

type fixture struct {
	dir      string
	manifest string
	config   string
	journal  string
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
}

func setupFixture(t *testing.T, manifest string) fixture {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()

	f := fixture{
		dir:      dir,
		manifest: filepath.Join(dir, "solution.yaml"),
		config:   filepath.Join(dir, "buildgen.yaml"),
		journal:  filepath.Join(dir, "journal.db"),
	}
	require.NoError(t, os.WriteFile(f.manifest, []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(f.config, []byte("journal:\n  dsn: "+f.journal+"\nlog:\n  level: error\n"), 0o644))

	for _, p := range []string{
		"src/core/build.cpp",
		"src/core/core.h",
		"src/game/main.cpp",
		"third_party/zlib/bin/libz.so",
		"third_party/zlib/lib/libzd.a",
		"third_party/zlib/lib/libz.a",
	} {
		touch(t, filepath.Join(dir, filepath.FromSlash(p)))
	}
	return f
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// =============================================================================
// Generate Tests
// =============================================================================

func TestGenerate_FullRun(t *testing.T) {
	f := setupFixture(t, testManifest)

	code, stdout, stderr := runCLI(t, "generate", "--config", f.config, f.manifest)
	require.Equal(t, ExitSuccess, code, stderr)

	assert.FileExists(t, filepath.Join(f.dir, "build", "CMakeLists.txt"))
	assert.FileExists(t, filepath.Join(f.dir, "build", "core", "CMakeLists.txt"))
	assert.FileExists(t, filepath.Join(f.dir, "build", "game", "CMakeLists.txt"))
	assert.FileExists(t, filepath.Join(f.dir, "publish", "debug", "bin", "libz.so"))
	assert.FileExists(t, filepath.Join(f.dir, "publish", "release", "bin", "libz.so"))

	assert.Contains(t, stdout, "warning[missing-link-path]")
	assert.Contains(t, stdout, "missing.a")

	store, err := journal.NewSQLiteStore(f.journal)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), journal.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.RunSucceeded, runs[0].Status)
	assert.Equal(t, 2, runs[0].Projects)
	assert.Equal(t, 2, runs[0].Copied)
	assert.Equal(t, 1, runs[0].Diagnostics)

	deployments, err := store.ListDeployments(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, deployments, 2)
}

func TestGenerate_SecondRunIsIncremental(t *testing.T) {
	f := setupFixture(t, testManifest)
	cfg, err := LoadConfig(f.config)
	require.NoError(t, err)

	g := NewGenerator(cfg, SetupLogger(cfg, &bytes.Buffer{}), &bytes.Buffer{})

	first, err := g.Generate(context.Background(), RunOptions{Manifest: f.manifest})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Deploy.Copied)
	assert.Equal(t, 3, first.Output.Created)

	second, err := g.Generate(context.Background(), RunOptions{Manifest: f.manifest})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Deploy.Copied)
	assert.Equal(t, 2, second.Deploy.Skipped)
	assert.Equal(t, 0, second.Output.Created+second.Output.Updated)
	assert.Equal(t, 3, second.Output.Unchanged)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestGenerate_DryRun(t *testing.T) {
	f := setupFixture(t, testManifest)

	code, stdout, stderr := runCLI(t, "generate", "--config", f.config, "--dry-run", f.manifest)
	require.Equal(t, ExitSuccess, code, stderr)

	assert.NoDirExists(t, filepath.Join(f.dir, "build"))
	assert.NoDirExists(t, filepath.Join(f.dir, "publish"))
	assert.Contains(t, stdout, "+++ b/CMakeLists.txt")
}

func TestGenerate_DryRunDiffLimit(t *testing.T) {
	f := setupFixture(t, testManifest)
	config := "journal:\n  dsn: " + f.journal + "\nlog:\n  level: error\ngenerator:\n  max_diff_bytes: 16\n"
	require.NoError(t, os.WriteFile(f.config, []byte(config), 0o644))

	code, stdout, stderr := runCLI(t, "generate", "--config", f.config, "--dry-run", f.manifest)
	require.Equal(t, ExitSuccess, code, stderr)

	assert.Contains(t, stdout, "@@ diff omitted (too large) @@")
	assert.NotContains(t, stdout, "cmake_minimum_required")
}

func TestGenerate_NoDeployWithJSONBackend(t *testing.T) {
	f := setupFixture(t, testManifest)

	code, _, stderr := runCLI(t, "generate", "--config", f.config, "--backend", "json", "--no-deploy", f.manifest)
	require.Equal(t, ExitSuccess, code, stderr)

	assert.NoDirExists(t, filepath.Join(f.dir, "publish"))
	data, err := os.ReadFile(filepath.Join(f.dir, "build", "buildplan.json"))
	require.NoError(t, err)

	var bp plan.BuildPlan
	require.NoError(t, json.Unmarshal(data, &bp))
	assert.Equal(t, "engine", bp.Solution)
	require.Len(t, bp.Projects, 2)
	assert.Equal(t, "core", bp.Projects[0].Name, "dependencies come first")
	assert.Equal(t, "game", bp.Projects[1].Name)
}

func TestGenerate_DeployFailureIsNotFatal(t *testing.T) {
	f := setupFixture(t, testManifest)
	require.NoError(t, os.Remove(filepath.Join(f.dir, "third_party", "zlib", "bin", "libz.so")))

	cfg, err := LoadConfig(f.config)
	require.NoError(t, err)
	g := NewGenerator(cfg, SetupLogger(cfg, &bytes.Buffer{}), &bytes.Buffer{})

	result, err := g.Generate(context.Background(), RunOptions{Manifest: f.manifest})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Deploy.Failed)
	for _, r := range result.Deploy.Results {
		assert.Equal(t, deploy.Failed, r.Outcome)
	}
	assert.Equal(t, output.StatusCreated, result.Output.Changes[0].Status)

	// Deploy diagnostics arrive from concurrent configurations; the run
	// result orders them deterministically.
	require.Len(t, result.Diagnostics, 3)
	assert.Equal(t, diag.KindMissingDeploySource, result.Diagnostics[0].Kind)
	assert.True(t, strings.EqualFold("Debug", result.Diagnostics[0].Configuration))
	assert.Equal(t, diag.KindMissingDeploySource, result.Diagnostics[1].Kind)
	assert.True(t, strings.EqualFold("Release", result.Diagnostics[1].Configuration))
	assert.Equal(t, diag.KindMissingLinkPath, result.Diagnostics[2].Kind)
}

// =============================================================================
// Exit Code Tests
// =============================================================================

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		args     []string
		want     int
	}{
		{
			name:     "missing manifest",
			manifest: "",
			want:     ExitManifestError,
		},
		{
			name:     "unknown backend",
			manifest: testManifest,
			args:     []string{"--backend", "ninja"},
			want:     ExitConfigError,
		},
		{
			name: "dependency cycle",
			manifest: `
solution: engine
platform: linux
configurations: [Release]
projects:
  - name: a
    links: [b]
  - name: b
    links: [a]
`,
			want: ExitPlanError,
		},
		{
			name: "backend rejects platform",
			manifest: `
solution: engine
platform: prospero
configurations: [Release]
`,
			want: ExitPlanError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupFixture(t, tt.manifest)
			if tt.manifest == "" {
				require.NoError(t, os.Remove(f.manifest))
			}
			args := append([]string{"generate", "--config", f.config}, tt.args...)
			args = append(args, f.manifest)

			code, _, stderr := runCLI(t, args...)
			assert.Equal(t, tt.want, code, stderr)
			assert.True(t, strings.HasPrefix(stderr, "error: "), stderr)
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	f := setupFixture(t, testManifest)
	require.NoError(t, os.WriteFile(f.config, []byte("deploy: [[["), 0o644))

	code, _, _ := runCLI(t, "generate", "--config", f.config, f.manifest)
	assert.Equal(t, ExitConfigError, code)
}

// =============================================================================
// Plan, History and Version Tests
// =============================================================================

func TestPlanCommand(t *testing.T) {
	f := setupFixture(t, testManifest)

	code, stdout, stderr := runCLI(t, "plan", "--config", f.config, f.manifest)
	require.Equal(t, ExitSuccess, code, stderr)

	var bp plan.BuildPlan
	require.NoError(t, json.Unmarshal([]byte(stdout), &bp))
	assert.Equal(t, "engine", bp.Solution)
	assert.Equal(t, "Release", bp.IncludeConfiguration)
	assert.Len(t, bp.Diagnostics, 1)
	assert.NoDirExists(t, filepath.Join(f.dir, "build"), "plan has no side effects")
}

func TestHistoryCommand(t *testing.T) {
	f := setupFixture(t, testManifest)

	code, _, stderr := runCLI(t, "generate", "--config", f.config, f.manifest)
	require.Equal(t, ExitSuccess, code, stderr)

	code, stdout, stderr := runCLI(t, "history", "--config", f.config)
	require.Equal(t, ExitSuccess, code, stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "succeeded")
	assert.Contains(t, lines[0], "engine/linux")

	runID := strings.Fields(lines[0])[0]
	code, stdout, stderr = runCLI(t, "history", "--config", f.config, runID)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "run "+runID)
	assert.Contains(t, stdout, "deployments:")
	assert.Contains(t, stdout, "missing-link-path")
}

func TestHistoryCommand_NoJournal(t *testing.T) {
	clearEnv(t)
	code, _, _ := runCLI(t, "history")
	assert.Equal(t, ExitConfigError, code)
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "buildgen dev (built unknown)\n", stdout)
}
