package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/buildgen/internal/core/diag"
)

// =============================================================================
// Records
// =============================================================================

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one generator invocation.
type Run struct {
	ID           string
	Solution     string
	Platform     string
	Backend      string
	Manifest     string
	DryRun       bool
	Status       RunStatus
	Projects     int
	FilesChanged int
	Diagnostics  int
	Copied       int
	Skipped      int
	Failed       int
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// NewRun creates a running Run with a fresh ID.
func NewRun(solution, platform, backend, manifest string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Solution:  solution,
		Platform:  platform,
		Backend:   backend,
		Manifest:  manifest,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Finish marks the run as done. A non-nil err marks it failed.
func (r *Run) Finish(err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunSucceeded
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DeploymentRecord is one deploy action outcome within a run.
type DeploymentRecord struct {
	Library       string
	Configuration string
	SourcePath    string
	TargetPath    string
	Outcome       string
	Error         string
}

// =============================================================================
// Store Interface
// =============================================================================

// Store persists runs and their deploy outcomes.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]Run, error)

	RecordDeployments(ctx context.Context, runID string, records []DeploymentRecord) error
	ListDeployments(ctx context.Context, runID string) ([]DeploymentRecord, error)

	RecordDiagnostics(ctx context.Context, runID string, ds []diag.Diagnostic) error
	ListDiagnostics(ctx context.Context, runID string) ([]diag.Diagnostic, error)

	Close() error
}

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
