package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/artpar/buildgen/internal/core/diag"
	"github.com/artpar/buildgen/internal/core/matrix"
	"github.com/artpar/buildgen/internal/core/plan"
	"github.com/artpar/buildgen/internal/shell/deploy"
	"github.com/artpar/buildgen/internal/shell/emitter"
	"github.com/artpar/buildgen/internal/shell/journal"
	"github.com/artpar/buildgen/internal/shell/manifest"
	"github.com/artpar/buildgen/internal/shell/output"
	"github.com/artpar/buildgen/internal/shell/report"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess       = 0
	ExitConfigError   = 1
	ExitManifestError = 2
	ExitPlanError     = 3
	ExitOutputError   = 4
	ExitJournalError  = 5
)

// =============================================================================
// Generator
// =============================================================================

// RunOptions are the per-invocation inputs of Generate.
type RunOptions struct {
	Manifest string
	Backend  string // overrides generator.backend when set
	DryRun   bool
	NoDeploy bool
}

// RunResult describes a finished Generate call.
type RunResult struct {
	Plan        *plan.BuildPlan
	Deploy      deploy.Report
	Output      output.Summary
	Diagnostics []diag.Diagnostic
	RunID       string
}

// fileSystem is what a run needs from the disk: existence checks while
// planning and copies while deploying.
type fileSystem interface {
	deploy.FileSystem
	matrix.FileStat
}

// Generator wires manifest loading, planning, deployment, emission and the
// run journal together.
type Generator struct {
	cfg      *Config
	logger   *slog.Logger
	console  *report.ConsoleSink
	registry *emitter.Registry
	fs       fileSystem
}

// NewGenerator creates a Generator. Diagnostics and the run summary go to console.
func NewGenerator(cfg *Config, logger *slog.Logger, console io.Writer) *Generator {
	return &Generator{
		cfg:      cfg,
		logger:   logger,
		console:  report.NewConsoleSink(console),
		registry: emitter.DefaultRegistry(cfg.CMake),
		fs:       deploy.OSFileSystem{},
	}
}

// Plan loads the manifest and builds the plan without side effects.
func (g *Generator) Plan(manifestPath string) (*plan.BuildPlan, error) {
	manifestPath, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, &GeneratorError{Op: "load manifest", Err: err, ExitCode: ExitManifestError}
	}
	solution, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, &GeneratorError{Op: "load manifest", Err: err, ExitCode: ExitManifestError}
	}

	baseDir := filepath.Dir(manifestPath)
	opts := plan.Options{
		PublishRoot:   anchor(baseDir, g.cfg.Deploy.PublishRoot),
		GeneratedRoot: anchor(baseDir, g.cfg.Generator.GeneratedRoot),
		Tools:         g.cfg.Tools,
		Parallelism:   g.cfg.Generator.Parallelism,
	}

	bp, err := plan.Build(solution, opts, g.fs)
	if err != nil {
		return nil, &GeneratorError{Op: "build plan", Err: err, ExitCode: ExitPlanError}
	}
	g.logger.Debug("plan built",
		"solution", bp.Solution,
		"projects", len(bp.Projects),
		"diagnostics", len(bp.Diagnostics),
	)
	return bp, nil
}

// Generate performs a full run: plan, deploy, emit, write and journal.
// Recoverable problems are reported as diagnostics and never fail the run.
func (g *Generator) Generate(ctx context.Context, opts RunOptions) (result *RunResult, err error) {
	backend := g.cfg.Generator.Backend
	if opts.Backend != "" {
		backend = opts.Backend
	}
	dryRun := opts.DryRun || g.cfg.Generator.DryRun

	e, err := g.registry.Get(backend)
	if err != nil {
		return nil, &GeneratorError{Op: "select backend", Err: err, ExitCode: ExitConfigError}
	}

	store, err := g.openJournal()
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
	}

	bp, err := g.Plan(opts.Manifest)
	if err != nil {
		return nil, err
	}

	var run *journal.Run
	if store != nil {
		run = journal.NewRun(bp.Solution, string(bp.Platform), backend, opts.Manifest)
		run.DryRun = dryRun
		if err := store.CreateRun(ctx, run); err != nil {
			return nil, &GeneratorError{Op: "create run", Err: err, ExitCode: ExitJournalError}
		}
		defer func() {
			run.Finish(err)
			if ferr := store.FinishRun(context.WithoutCancel(ctx), run); ferr != nil && err == nil {
				err = &GeneratorError{Op: "finish run", Err: ferr, ExitCode: ExitJournalError}
			}
		}()
	}

	collector := &diag.Collector{}
	sink := diag.Tee(collector, report.NewLogSink(g.logger), g.console)
	for _, d := range bp.Diagnostics {
		sink.Report(d)
	}

	files, err := emitter.Emit(e, bp)
	if err != nil {
		return nil, &GeneratorError{Op: "emit " + backend, Err: err, ExitCode: ExitPlanError}
	}

	result = &RunResult{Plan: bp}

	if !dryRun && !opts.NoDeploy && g.cfg.Deploy.Enabled {
		syncer := deploy.NewSynchronizer(g.fs, deploy.Config{
			PublishRoot:   bp.PublishRoot,
			MaxConcurrent: g.cfg.Deploy.MaxConcurrent,
		}, sink, g.logger)
		result.Deploy = syncer.SyncAll(ctx, bp.Deployments())
	}

	manifestDir, err := filepath.Abs(filepath.Dir(opts.Manifest))
	if err != nil {
		return nil, &GeneratorError{Op: "write output", Err: err, ExitCode: ExitOutputError}
	}
	writer := output.NewWriter(output.Config{
		Root:         anchor(manifestDir, g.cfg.Generator.OutputDir),
		DryRun:       dryRun,
		DiffContext:  g.cfg.Generator.DiffContext,
		MaxDiffBytes: g.cfg.Generator.MaxDiffBytes,
	}, g.logger)
	summary, err := writer.Write(files)
	if err != nil {
		return nil, &GeneratorError{Op: "write output", Err: err, ExitCode: ExitOutputError}
	}
	result.Output = summary
	result.Diagnostics = collector.Diagnostics()
	diag.Sort(result.Diagnostics)

	if run != nil {
		result.RunID = run.ID
		run.Projects = len(bp.Projects)
		run.FilesChanged = summary.Created + summary.Updated
		run.Diagnostics = len(result.Diagnostics)
		run.Copied = result.Deploy.Copied
		run.Skipped = result.Deploy.Skipped
		run.Failed = result.Deploy.Failed
		if err := g.record(ctx, store, run.ID, result); err != nil {
			return nil, err
		}
	}

	g.console.Summary(len(bp.Projects), summary.Created+summary.Updated, len(result.Diagnostics), result.Deploy.Failed)
	g.logger.Info("generation complete",
		"solution", bp.Solution,
		"backend", backend,
		"dry_run", dryRun,
		"created", summary.Created,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"copied", result.Deploy.Copied,
		"skipped", result.Deploy.Skipped,
		"failed", result.Deploy.Failed,
	)
	return result, nil
}

func (g *Generator) record(ctx context.Context, store journal.Store, runID string, result *RunResult) error {
	records := make([]journal.DeploymentRecord, 0, len(result.Deploy.Results))
	for _, r := range result.Deploy.Results {
		rec := journal.DeploymentRecord{
			Library:       r.Action.Library,
			Configuration: r.Action.Configuration,
			SourcePath:    r.Action.SourcePath,
			TargetPath:    r.Target,
			Outcome:       string(r.Outcome),
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		records = append(records, rec)
	}
	if err := store.RecordDeployments(ctx, runID, records); err != nil {
		return &GeneratorError{Op: "record deployments", Err: err, ExitCode: ExitJournalError}
	}
	if err := store.RecordDiagnostics(ctx, runID, result.Diagnostics); err != nil {
		return &GeneratorError{Op: "record diagnostics", Err: err, ExitCode: ExitJournalError}
	}
	return nil
}

// openJournal returns nil when the journal is disabled.
func (g *Generator) openJournal() (journal.Store, error) {
	if g.cfg.Journal.DSN == "" {
		return nil, nil
	}
	store, err := journal.NewSQLiteStore(g.cfg.Journal.DSN)
	if err != nil {
		return nil, &GeneratorError{Op: "open journal", Err: err, ExitCode: ExitJournalError}
	}
	return store, nil
}

// anchor resolves a relative directory against base.
func anchor(base, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

// =============================================================================
// Generator Error
// =============================================================================

// GeneratorError carries the failing step and the process exit code.
type GeneratorError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *GeneratorError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *GeneratorError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var gerr *GeneratorError
	if errors.As(err, &gerr) {
		return gerr.ExitCode
	}
	return ExitConfigError
}
