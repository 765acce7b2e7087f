// Package deploy stages runtime files into per-configuration publish
// directories. A file is copied only when the target is missing or its
// modification time differs from the source's.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/artpar/buildgen/internal/core/diag"
	"github.com/artpar/buildgen/internal/core/plan"
)

// Outcome is what Sync did with one deploy action.
type Outcome string

const (
	Copied  Outcome = "copied"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// ErrTargetOutsidePublishRoot is returned for target paths escaping the configuration directory.
var ErrTargetOutsidePublishRoot = errors.New("deploy target escapes publish directory")

// Result describes the outcome of one deploy action.
type Result struct {
	Action  plan.DeployAction
	Target  string
	Outcome Outcome
	Err     error
}

// Report summarizes a SyncAll run. Results are in input order.
type Report struct {
	Results []Result
	Copied  int
	Skipped int
	Failed  int
}

// Config configures a Synchronizer.
type Config struct {
	PublishRoot   string
	MaxConcurrent int // configurations synced in parallel
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		PublishRoot:   "publish",
		MaxConcurrent: 4,
	}
}

// Synchronizer copies deploy actions into the publish tree.
type Synchronizer struct {
	fs     FileSystem
	config Config
	sink   diag.Sink
	logger *slog.Logger
}

// NewSynchronizer creates a Synchronizer. A nil sink discards diagnostics.
func NewSynchronizer(fsys FileSystem, config Config, sink diag.Sink, logger *slog.Logger) *Synchronizer {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if sink == nil {
		sink = diag.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		fs:     fsys,
		config: config,
		sink:   sink,
		logger: logger.With("component", "deploy"),
	}
}

// TargetPath returns <publish>/<lowercase configuration>/<relative target>.
func (s *Synchronizer) TargetPath(a plan.DeployAction) (string, error) {
	rel := filepath.FromSlash(a.TargetPath)
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrTargetOutsidePublishRoot, a.TargetPath)
	}
	clean := filepath.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrTargetOutsidePublishRoot, a.TargetPath)
	}
	return filepath.Join(s.config.PublishRoot, strings.ToLower(a.Configuration), clean), nil
}

// Sync stages one deploy action.
//
// The copy is skipped when the target exists and its modification time equals
// the source's exactly. Otherwise the source is copied over the target and the
// target is restamped with the source's modification time. A failure between
// copy and restamp leaves mismatched times, which costs one extra copy on the
// next run.
func (s *Synchronizer) Sync(ctx context.Context, a plan.DeployAction) Result {
	result := Result{Action: a}

	target, err := s.TargetPath(a)
	if err != nil {
		return s.fail(result, diag.KindDeployCopyFailed, err)
	}
	result.Target = target

	if err := ctx.Err(); err != nil {
		return s.fail(result, diag.KindDeployCopyFailed, err)
	}

	srcTime, err := s.fs.ModTime(a.SourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.fail(result, diag.KindMissingDeploySource, err)
		}
		return s.fail(result, diag.KindDeployCopyFailed, err)
	}

	if dstTime, err := s.fs.ModTime(target); err == nil && dstTime.Equal(srcTime) {
		result.Outcome = Skipped
		s.logger.Debug("deploy file up to date", "source", a.SourcePath, "target", target)
		return result
	}

	if err := s.fs.MkdirAll(filepath.Dir(target)); err != nil {
		return s.fail(result, diag.KindDeployCopyFailed, fmt.Errorf("create directory: %w", err))
	}
	if err := s.fs.CopyFile(a.SourcePath, target); err != nil {
		return s.fail(result, diag.KindDeployCopyFailed, fmt.Errorf("copy: %w", err))
	}
	if err := s.fs.Chtimes(target, srcTime); err != nil {
		return s.fail(result, diag.KindDeployCopyFailed, fmt.Errorf("restamp: %w", err))
	}

	result.Outcome = Copied
	s.logger.Info("copied deploy file", "library", a.Library, "source", a.SourcePath, "target", target)
	return result
}

// SyncAll stages every action. Actions of one configuration run in order;
// different configurations write disjoint subtrees and run concurrently.
func (s *Synchronizer) SyncAll(ctx context.Context, actions []plan.DeployAction) Report {
	results := make([]Result, len(actions))

	groups := make(map[string][]int)
	var order []string
	for i, a := range actions {
		key := strings.ToLower(a.Configuration)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)
	for _, key := range order {
		indexes := groups[key]
		g.Go(func() error {
			for _, i := range indexes {
				results[i] = s.Sync(ctx, actions[i])
			}
			return nil
		})
	}
	g.Wait()

	report := Report{Results: results}
	for _, r := range results {
		switch r.Outcome {
		case Copied:
			report.Copied++
		case Skipped:
			report.Skipped++
		case Failed:
			report.Failed++
		}
	}
	s.logger.Info("deploy finished", "copied", report.Copied, "skipped", report.Skipped, "failed", report.Failed)
	return report
}

func (s *Synchronizer) fail(result Result, kind diag.Kind, err error) Result {
	result.Outcome = Failed
	result.Err = err

	message := err.Error()
	if kind == diag.KindMissingDeploySource {
		message = "deploy source does not exist"
	}
	s.sink.Report(diag.Diagnostic{
		Kind:          kind,
		Library:       result.Action.Library,
		Path:          result.Action.SourcePath,
		Configuration: result.Action.Configuration,
		Target:        result.Target,
		Message:       message,
	})
	s.logger.Warn("deploy file failed", "library", result.Action.Library, "source", result.Action.SourcePath, "target", result.Target, "error", err)
	return result
}
