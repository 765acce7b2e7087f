package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T, dryRun bool) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	return NewWriter(Config{Root: root, DryRun: dryRun}, nil), root
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWrite_CreatesThenUnchanged(t *testing.T) {
	w, root := newTestWriter(t, false)
	files := []File{
		{Path: "CMakeLists.txt", Content: []byte("project(x)\n")},
		{Path: "core/CMakeLists.txt", Content: []byte("project(core)\n")},
	}

	first, err := w.Write(files)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.True(t, first.Changed())

	data, err := os.ReadFile(filepath.Join(root, "core", "CMakeLists.txt"))
	require.NoError(t, err)
	assert.Equal(t, "project(core)\n", string(data))

	info, err := os.Stat(filepath.Join(root, "CMakeLists.txt"))
	require.NoError(t, err)
	before := info.ModTime()

	second, err := w.Write(files)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Unchanged)
	assert.False(t, second.Changed())

	info, err = os.Stat(filepath.Join(root, "CMakeLists.txt"))
	require.NoError(t, err)
	assert.Equal(t, before, info.ModTime(), "unchanged file must not be rewritten")
}

func TestWrite_Updates(t *testing.T) {
	w, root := newTestWriter(t, false)
	_, err := w.Write([]File{{Path: "a.txt", Content: []byte("one\n")}})
	require.NoError(t, err)

	summary, err := w.Write([]File{{Path: "a.txt", Content: []byte("two\n")}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	data, _ := os.ReadFile(filepath.Join(root, "a.txt"))
	assert.Equal(t, "two\n", string(data))
}

func TestWrite_DryRunDiff(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\n"), 0o644))
	w := NewWriter(Config{Root: root, DryRun: true}, nil)

	summary, err := w.Write([]File{
		{Path: "a.txt", Content: []byte("one\nthree\n")},
		{Path: "b.txt", Content: []byte("new\n")},
	})
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	require.Len(t, summary.Changes, 2)

	assert.Equal(t, StatusUpdated, summary.Changes[0].Status)
	assert.Contains(t, summary.Changes[0].Diff, "--- a/a.txt")
	assert.Contains(t, summary.Changes[0].Diff, "-two")
	assert.Contains(t, summary.Changes[0].Diff, "+three")

	assert.Equal(t, StatusCreated, summary.Changes[1].Status)
	assert.Contains(t, summary.Changes[1].Diff, "--- /dev/null")

	data, _ := os.ReadFile(filepath.Join(root, "a.txt"))
	assert.Equal(t, "one\ntwo\n", string(data), "dry run must not write")
	_, err = os.Stat(filepath.Join(root, "b.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestWrite_RejectsBadPaths(t *testing.T) {
	w, _ := newTestWriter(t, false)

	_, err := w.Write([]File{{Path: "../escape.txt"}})
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = w.Write([]File{{Path: "a.txt"}, {Path: "./a.txt"}})
	assert.ErrorIs(t, err, ErrDuplicatePath)

	var werr *WriteError
	assert.ErrorAs(t, err, &werr)
}

func TestWrite_NothingWrittenWhenAnyPathInvalid(t *testing.T) {
	w, root := newTestWriter(t, false)

	_, err := w.Write([]File{{Path: "ok.txt", Content: []byte("x")}, {Path: "/abs.txt"}})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(root, "ok.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
