package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/buildgen/internal/core/diag"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// executor is satisfied by both *sqlx.DB and *sqlx.Tx.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the journal at dsn and runs migrations.
// ":memory:" gives a private in-memory journal.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewJournalError("NewSQLiteStore", "", "failed to open database", ErrConnectionFailed)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewJournalError("NewSQLiteStore", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewJournalError("NewSQLiteStore", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func (s *SQLiteStore) withTx(ctx context.Context, op, runID string, fn func(exec executor) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewJournalError(op, runID, "failed to begin transaction", ErrTxFailed)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewJournalError(op, runID, fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewJournalError(op, runID, "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

// =============================================================================
// Run Operations
// =============================================================================

type runRow struct {
	ID           string  `db:"id"`
	Solution     string  `db:"solution"`
	Platform     string  `db:"platform"`
	Backend      string  `db:"backend"`
	Manifest     string  `db:"manifest"`
	DryRun       bool    `db:"dry_run"`
	Status       string  `db:"status"`
	Projects     int     `db:"projects"`
	FilesChanged int     `db:"files_changed"`
	Diagnostics  int     `db:"diagnostics"`
	Copied       int     `db:"copied"`
	Skipped      int     `db:"skipped"`
	Failed       int     `db:"failed"`
	ErrorMessage string  `db:"error_message"`
	StartedAt    string  `db:"started_at"`
	FinishedAt   *string `db:"finished_at"`
}

func runToRow(run *Run) map[string]any {
	var finishedAt *string
	if run.FinishedAt != nil {
		s := run.FinishedAt.UTC().Format(timeLayout)
		finishedAt = &s
	}
	return map[string]any{
		"id":            run.ID,
		"solution":      run.Solution,
		"platform":      run.Platform,
		"backend":       run.Backend,
		"manifest":      run.Manifest,
		"dry_run":       run.DryRun,
		"status":        string(run.Status),
		"projects":      run.Projects,
		"files_changed": run.FilesChanged,
		"diagnostics":   run.Diagnostics,
		"copied":        run.Copied,
		"skipped":       run.Skipped,
		"failed":        run.Failed,
		"error_message": run.Error,
		"started_at":    run.StartedAt.UTC().Format(timeLayout),
		"finished_at":   finishedAt,
	}
}

func rowToRun(row *runRow) (*Run, error) {
	startedAt, err := time.Parse(timeLayout, row.StartedAt)
	if err != nil {
		return nil, NewJournalError("rowToRun", row.ID, "invalid started_at", err)
	}
	run := &Run{
		ID:           row.ID,
		Solution:     row.Solution,
		Platform:     row.Platform,
		Backend:      row.Backend,
		Manifest:     row.Manifest,
		DryRun:       row.DryRun,
		Status:       RunStatus(row.Status),
		Projects:     row.Projects,
		FilesChanged: row.FilesChanged,
		Diagnostics:  row.Diagnostics,
		Copied:       row.Copied,
		Skipped:      row.Skipped,
		Failed:       row.Failed,
		Error:        row.ErrorMessage,
		StartedAt:    startedAt,
	}
	if row.FinishedAt != nil {
		t, err := time.Parse(timeLayout, *row.FinishedAt)
		if err != nil {
			return nil, NewJournalError("rowToRun", row.ID, "invalid finished_at", err)
		}
		run.FinishedAt = &t
	}
	return run, nil
}

// CreateRun inserts a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (
			id, solution, platform, backend, manifest, dry_run, status,
			projects, files_changed, diagnostics, copied, skipped, failed,
			error_message, started_at, finished_at
		) VALUES (
			:id, :solution, :platform, :backend, :manifest, :dry_run, :status,
			:projects, :files_changed, :diagnostics, :copied, :skipped, :failed,
			:error_message, :started_at, :finished_at
		)`

	if _, err := s.db.NamedExecContext(ctx, query, runToRow(run)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.id") {
			return NewJournalError("CreateRun", run.ID, "run already exists", ErrDuplicateID)
		}
		return NewJournalError("CreateRun", run.ID, err.Error(), err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	query := `
		UPDATE runs SET
			status = :status, dry_run = :dry_run,
			projects = :projects, files_changed = :files_changed, diagnostics = :diagnostics,
			copied = :copied, skipped = :skipped, failed = :failed,
			error_message = :error_message, finished_at = :finished_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, query, runToRow(run))
	if err != nil {
		return NewJournalError("FinishRun", run.ID, err.Error(), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewJournalError("FinishRun", run.ID, "run not found", ErrNotFound)
	}
	return nil
}

// GetRun loads one run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var row runRow
	if err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewJournalError("GetRun", id, "run not found", ErrNotFound)
		}
		return nil, NewJournalError("GetRun", id, err.Error(), err)
	}
	return rowToRun(&row)
}

// ListRuns returns runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ? OFFSET ?`

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewJournalError("ListRuns", "", err.Error(), err)
	}

	runs := make([]Run, 0, len(rows))
	for i := range rows {
		run, err := rowToRun(&rows[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func requireRun(ctx context.Context, exec executor, op, runID string) error {
	var n int
	if err := exec.GetContext(ctx, &n, `SELECT COUNT(1) FROM runs WHERE id = ?`, runID); err != nil {
		return NewJournalError(op, runID, err.Error(), err)
	}
	if n == 0 {
		return NewJournalError(op, runID, "run not found", ErrNotFound)
	}
	return nil
}

// =============================================================================
// Deployment Operations
// =============================================================================

type deploymentRow struct {
	Library       string `db:"library"`
	Configuration string `db:"configuration"`
	SourcePath    string `db:"source_path"`
	TargetPath    string `db:"target_path"`
	Outcome       string `db:"outcome"`
	ErrorMessage  string `db:"error_message"`
}

// RecordDeployments appends deploy outcomes to a run in one transaction.
func (s *SQLiteStore) RecordDeployments(ctx context.Context, runID string, records []DeploymentRecord) error {
	return s.withTx(ctx, "RecordDeployments", runID, func(exec executor) error {
		if err := requireRun(ctx, exec, "RecordDeployments", runID); err != nil {
			return err
		}
		query := `
			INSERT INTO run_deployments (
				run_id, library, configuration, source_path, target_path, outcome, error_message
			) VALUES (
				:run_id, :library, :configuration, :source_path, :target_path, :outcome, :error_message
			)`
		for _, r := range records {
			row := map[string]any{
				"run_id":        runID,
				"library":       r.Library,
				"configuration": r.Configuration,
				"source_path":   r.SourcePath,
				"target_path":   r.TargetPath,
				"outcome":       r.Outcome,
				"error_message": r.Error,
			}
			if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
				return NewJournalError("RecordDeployments", runID, err.Error(), err)
			}
		}
		return nil
	})
}

// ListDeployments returns the deploy outcomes of a run in insertion order.
func (s *SQLiteStore) ListDeployments(ctx context.Context, runID string) ([]DeploymentRecord, error) {
	query := `
		SELECT library, configuration, source_path, target_path, outcome, error_message
		FROM run_deployments WHERE run_id = ? ORDER BY id`

	var rows []deploymentRow
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, NewJournalError("ListDeployments", runID, err.Error(), err)
	}

	records := make([]DeploymentRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, DeploymentRecord{
			Library:       row.Library,
			Configuration: row.Configuration,
			SourcePath:    row.SourcePath,
			TargetPath:    row.TargetPath,
			Outcome:       row.Outcome,
			Error:         row.ErrorMessage,
		})
	}
	return records, nil
}

// =============================================================================
// Diagnostic Operations
// =============================================================================

type diagnosticRow struct {
	Kind          string `db:"kind"`
	Library       string `db:"library"`
	Platform      string `db:"platform"`
	Configuration string `db:"configuration"`
	Path          string `db:"path"`
	Target        string `db:"target"`
	Message       string `db:"message"`
}

// RecordDiagnostics appends diagnostics to a run in one transaction.
func (s *SQLiteStore) RecordDiagnostics(ctx context.Context, runID string, ds []diag.Diagnostic) error {
	return s.withTx(ctx, "RecordDiagnostics", runID, func(exec executor) error {
		if err := requireRun(ctx, exec, "RecordDiagnostics", runID); err != nil {
			return err
		}
		query := `
			INSERT INTO run_diagnostics (
				run_id, kind, library, platform, configuration, path, target, message
			) VALUES (
				:run_id, :kind, :library, :platform, :configuration, :path, :target, :message
			)`
		for _, d := range ds {
			row := map[string]any{
				"run_id":        runID,
				"kind":          string(d.Kind),
				"library":       d.Library,
				"platform":      d.Platform,
				"configuration": d.Configuration,
				"path":          d.Path,
				"target":        d.Target,
				"message":       d.Message,
			}
			if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
				return NewJournalError("RecordDiagnostics", runID, err.Error(), err)
			}
		}
		return nil
	})
}

// ListDiagnostics returns the diagnostics of a run in insertion order.
func (s *SQLiteStore) ListDiagnostics(ctx context.Context, runID string) ([]diag.Diagnostic, error) {
	query := `
		SELECT kind, library, platform, configuration, path, target, message
		FROM run_diagnostics WHERE run_id = ? ORDER BY id`

	var rows []diagnosticRow
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, NewJournalError("ListDiagnostics", runID, err.Error(), err)
	}

	out := make([]diag.Diagnostic, 0, len(rows))
	for _, row := range rows {
		out = append(out, diag.Diagnostic{
			Kind:          diag.Kind(row.Kind),
			Library:       row.Library,
			Platform:      row.Platform,
			Configuration: row.Configuration,
			Path:          row.Path,
			Target:        row.Target,
			Message:       row.Message,
		})
	}
	return out, nil
}
