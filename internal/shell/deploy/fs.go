package deploy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FileSystem is the filesystem capability used by the Synchronizer.
// ModTime returns an error wrapping fs.ErrNotExist for missing paths.
type FileSystem interface {
	ModTime(path string) (time.Time, error)
	MkdirAll(dir string) error
	// CopyFile replaces dst with the contents of src. dst is never left
	// partially written.
	CopyFile(src, dst string) error
	Chtimes(path string, mtime time.Time) error
}

// =============================================================================
// OSFileSystem
// =============================================================================

// OSFileSystem implements FileSystem on the local disk.
type OSFileSystem struct{}

// ModTime returns the modification time of path.
func (OSFileSystem) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Exists reports whether path exists.
func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MkdirAll creates dir and any missing parents.
func (OSFileSystem) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// CopyFile copies src into a temporary file next to dst and renames it over dst.
func (OSFileSystem) CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return fmt.Errorf("copy contents: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if info, statErr := in.Stat(); statErr == nil {
		os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	return os.Rename(tmp.Name(), dst)
}

// Chtimes sets both access and modification time of path to mtime.
func (OSFileSystem) Chtimes(path string, mtime time.Time) error {
	return os.Chtimes(path, mtime, mtime)
}
