package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/buildgen/internal/core/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func createTestRun(t *testing.T, store Store) *Run {
	t.Helper()
	run := NewRun("engine", "linux", "cmake", "/work/solution.yaml")
	require.NoError(t, store.CreateRun(context.Background(), run))
	return run
}

// =============================================================================
// Run Tests
// =============================================================================

func TestCreateAndGetRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, store)

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "engine", got.Solution)
	assert.Equal(t, "cmake", got.Backend)
	assert.Equal(t, RunRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
}

func TestCreateRun_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store)

	err := store.CreateRun(context.Background(), run)
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestGetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var jerr *JournalError
	require.ErrorAs(t, err, &jerr)
	assert.Equal(t, "GetRun", jerr.Op)
}

func TestFinishRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, store)

	run.Projects = 3
	run.FilesChanged = 4
	run.Copied = 2
	run.Failed = 1
	run.Finish(errors.New("deploy failed"))
	require.NoError(t, store.FinishRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, "deploy failed", got.Error)
	assert.Equal(t, 3, got.Projects)
	assert.Equal(t, 4, got.FilesChanged)
	assert.Equal(t, 2, got.Copied)
	assert.Equal(t, 1, got.Failed)
	require.NotNil(t, got.FinishedAt)
	assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))
}

func TestFinishRun_NotFound(t *testing.T) {
	store := setupTestStore(t)
	run := NewRun("engine", "linux", "cmake", "")
	run.Finish(nil)

	err := store.FinishRun(context.Background(), run)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := NewRun("engine", "linux", "cmake", "")
		run.StartedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.CreateRun(ctx, run))
	}

	runs, err := store.ListRuns(ctx, DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt), "newest first")
	assert.True(t, runs[1].StartedAt.After(runs[2].StartedAt))

	page, err := store.ListRuns(ctx, ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, runs[1].ID, page[0].ID)
}

func TestListOptions_Normalize(t *testing.T) {
	assert.Equal(t, ListOptions{Limit: 20}, ListOptions{}.Normalize())
	assert.Equal(t, ListOptions{Limit: 1000}, ListOptions{Limit: 5000, Offset: -1}.Normalize())
}

// =============================================================================
// Deployment and Diagnostic Tests
// =============================================================================

func TestRecordDeployments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, store)

	records := []DeploymentRecord{
		{Library: "zlib", Configuration: "Debug", SourcePath: "/z/zd.dll", TargetPath: "/publish/debug/z.dll", Outcome: "copied"},
		{Library: "zlib", Configuration: "Release", SourcePath: "/z/z.dll", TargetPath: "/publish/release/z.dll", Outcome: "failed", Error: "disk full"},
	}
	require.NoError(t, store.RecordDeployments(ctx, run.ID, records))

	got, err := store.ListDeployments(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	empty, err := store.ListDeployments(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRecordDeployments_UnknownRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.RecordDeployments(context.Background(), "missing", []DeploymentRecord{{Library: "zlib", Outcome: "copied"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordDiagnostics(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, store)

	ds := []diag.Diagnostic{
		{Kind: diag.KindMissingLinkPath, Library: "foo", Platform: "linux", Configuration: "Release", Path: "/lib/foo_r.lib"},
		{Kind: diag.KindUnclassifiedConfiguration, Library: "foo", Platform: "linux", Configuration: "Profile", Message: "no link tier"},
	}
	require.NoError(t, store.RecordDiagnostics(ctx, run.ID, ds))

	got, err := store.ListDiagnostics(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, ds, got)
}

// =============================================================================
// File Database Tests
// =============================================================================

func TestSQLiteStore_ReopenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	run := createTestRun(t, store)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}
