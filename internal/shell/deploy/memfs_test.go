package deploy

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// MemFS is an in-memory FileSystem. Safe for concurrent use.
type MemFS struct {
	mu     sync.Mutex
	files  map[string]memFile
	dirs   map[string]bool
	copies int

	// FailCopy makes CopyFile fail for the listed destination paths.
	FailCopy map[string]error
}

type memFile struct {
	data  []byte
	mtime time.Time
}

// NewMemFS creates an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{
		files:    make(map[string]memFile),
		dirs:     make(map[string]bool),
		FailCopy: make(map[string]error),
	}
}

// WriteFile creates or replaces a file with the given modification time.
func (m *MemFS) WriteFile(path string, data []byte, mtime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = memFile{data: append([]byte(nil), data...), mtime: mtime}
}

// ReadFile returns the contents of path.
func (m *MemFS) ReadFile(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	return f.data, ok
}

// Copies returns how many CopyFile calls succeeded.
func (m *MemFS) Copies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copies
}

// Exists reports whether a file exists at path.
func (m *MemFS) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

func (m *MemFS) ModTime(path string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return time.Time{}, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return f.mtime, nil
}

func (m *MemFS) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		m.dirs[d] = true
		if parent := filepath.Dir(d); parent == d {
			return nil
		}
	}
}

func (m *MemFS) CopyFile(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst = filepath.Clean(dst)
	if err, ok := m.FailCopy[dst]; ok {
		return err
	}
	f, ok := m.files[filepath.Clean(src)]
	if !ok {
		return &fs.PathError{Op: "open", Path: src, Err: fs.ErrNotExist}
	}
	if !m.dirs[filepath.Dir(dst)] {
		return &fs.PathError{Op: "create", Path: dst, Err: fmt.Errorf("parent directory missing: %w", fs.ErrNotExist)}
	}
	// Copying gives the target a fresh mtime until it is restamped.
	m.files[dst] = memFile{data: append([]byte(nil), f.data...), mtime: time.Now()}
	m.copies++
	return nil
}

func (m *MemFS) Chtimes(path string, mtime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	f, ok := m.files[path]
	if !ok {
		return &fs.PathError{Op: "chtimes", Path: path, Err: fs.ErrNotExist}
	}
	f.mtime = mtime
	m.files[path] = f
	return nil
}
