package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/buildgen/internal/core/diag"
	"github.com/artpar/buildgen/internal/core/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSynchronizer(fsys FileSystem) (*Synchronizer, *diag.Collector) {
	sink := &diag.Collector{}
	cfg := DefaultConfig()
	cfg.PublishRoot = "/publish"
	return NewSynchronizer(fsys, cfg, sink, nil), sink
}

func action(config, source, target string) plan.DeployAction {
	return plan.DeployAction{Library: "zlib", Configuration: config, SourcePath: source, TargetPath: target}
}

// =============================================================================
// Sync Tests
// =============================================================================

func TestSync_CopiesAndRestamps(t *testing.T) {
	mem := NewMemFS()
	mem.WriteFile("/libs/zlib.so", []byte("zlib"), baseTime)
	s, sink := newTestSynchronizer(mem)

	r := s.Sync(context.Background(), action("Release", "/libs/zlib.so", "bin/zlib.so"))
	require.NoError(t, r.Err)
	assert.Equal(t, Copied, r.Outcome)
	assert.Equal(t, filepath.Join("/publish", "release", "bin", "zlib.so"), r.Target)

	data, ok := mem.ReadFile(r.Target)
	require.True(t, ok)
	assert.Equal(t, "zlib", string(data))

	mtime, err := mem.ModTime(r.Target)
	require.NoError(t, err)
	assert.True(t, mtime.Equal(baseTime))
	assert.Zero(t, sink.Len())
}

func TestSync_Idempotent(t *testing.T) {
	mem := NewMemFS()
	mem.WriteFile("/libs/a.so", []byte("a"), baseTime)
	mem.WriteFile("/libs/b.so", []byte("b"), baseTime.Add(time.Hour))
	s, _ := newTestSynchronizer(mem)

	actions := []plan.DeployAction{
		action("Debug", "/libs/a.so", "bin/a.so"),
		action("Debug", "/libs/b.so", "bin/b.so"),
		action("Release", "/libs/a.so", "bin/a.so"),
	}

	first := s.SyncAll(context.Background(), actions)
	assert.Equal(t, 3, first.Copied)
	assert.Equal(t, 3, mem.Copies())

	second := s.SyncAll(context.Background(), actions)
	assert.Equal(t, 0, second.Copied)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 3, mem.Copies(), "second run must not copy")
}

func TestSync_NewerTargetStillCopied(t *testing.T) {
	mem := NewMemFS()
	mem.WriteFile("/libs/a.so", []byte("new"), baseTime)
	mem.WriteFile("/publish/debug/a.so", []byte("old"), baseTime.Add(time.Hour))
	s, _ := newTestSynchronizer(mem)

	r := s.Sync(context.Background(), action("Debug", "/libs/a.so", "a.so"))
	assert.Equal(t, Copied, r.Outcome)

	data, _ := mem.ReadFile("/publish/debug/a.so")
	assert.Equal(t, "new", string(data))
}

func TestSync_SourceTouchedForcesCopy(t *testing.T) {
	mem := NewMemFS()
	mem.WriteFile("/libs/a.so", []byte("a"), baseTime)
	s, _ := newTestSynchronizer(mem)

	s.Sync(context.Background(), action("Debug", "/libs/a.so", "a.so"))
	mem.WriteFile("/libs/a.so", []byte("a2"), baseTime.Add(-time.Second))

	r := s.Sync(context.Background(), action("Debug", "/libs/a.so", "a.so"))
	assert.Equal(t, Copied, r.Outcome)
}

func TestSync_MissingSource(t *testing.T) {
	mem := NewMemFS()
	s, sink := newTestSynchronizer(mem)

	r := s.Sync(context.Background(), action("Debug", "/libs/ghost.so", "bin/ghost.so"))
	assert.Equal(t, Failed, r.Outcome)
	require.Equal(t, 1, sink.Len())

	d := sink.Diagnostics()[0]
	assert.Equal(t, diag.KindMissingDeploySource, d.Kind)
	assert.Equal(t, "zlib", d.Library)
	assert.Equal(t, "/libs/ghost.so", d.Path)
}

func TestSync_CopyFailureContinues(t *testing.T) {
	mem := NewMemFS()
	mem.WriteFile("/libs/a.so", []byte("a"), baseTime)
	mem.WriteFile("/libs/b.so", []byte("b"), baseTime)
	mem.FailCopy[filepath.Join("/publish", "debug", "a.so")] = errors.New("disk full")
	s, sink := newTestSynchronizer(mem)

	report := s.SyncAll(context.Background(), []plan.DeployAction{
		action("Debug", "/libs/a.so", "a.so"),
		action("Debug", "/libs/b.so", "b.so"),
	})
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Copied)
	assert.Equal(t, Failed, report.Results[0].Outcome)
	assert.Equal(t, Copied, report.Results[1].Outcome)

	require.Equal(t, 1, sink.Len())
	d := sink.Diagnostics()[0]
	assert.Equal(t, diag.KindDeployCopyFailed, d.Kind)
	assert.Equal(t, filepath.Join("/publish", "debug", "a.so"), d.Target)
	assert.Contains(t, d.Message, "disk full")
}

func TestSync_RejectsEscapingTarget(t *testing.T) {
	mem := NewMemFS()
	mem.WriteFile("/libs/a.so", []byte("a"), baseTime)
	s, sink := newTestSynchronizer(mem)

	for _, target := range []string{"../a.so", "/etc/a.so", ""} {
		r := s.Sync(context.Background(), action("Debug", "/libs/a.so", target))
		assert.Equal(t, Failed, r.Outcome, target)
		assert.ErrorIs(t, r.Err, ErrTargetOutsidePublishRoot)
	}
	assert.Equal(t, 3, sink.Len())
	assert.Zero(t, mem.Copies())
}

// =============================================================================
// OSFileSystem Tests
// =============================================================================

func TestOSFileSystem_Idempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "libs", "a.so")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	require.NoError(t, os.Chtimes(src, baseTime, baseTime))

	cfg := Config{PublishRoot: filepath.Join(dir, "publish"), MaxConcurrent: 2}
	s := NewSynchronizer(OSFileSystem{}, cfg, nil, nil)
	actions := []plan.DeployAction{action("Release", src, "bin/a.so")}

	first := s.SyncAll(context.Background(), actions)
	require.Equal(t, 1, first.Copied)

	target := filepath.Join(dir, "publish", "release", "bin", "a.so")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(baseTime))

	second := s.SyncAll(context.Background(), actions)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Copied)

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
