// Package output writes rendered backend files to disk, touching a file only
// when its content changed.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// =============================================================================
// Types
// =============================================================================

// File is one rendered output file. Path is relative to the output root.
type File struct {
	Path    string
	Content []byte
}

// Status is what happened to one file.
type Status string

const (
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
)

// Change records one file's status and, in dry-run mode, its unified diff.
type Change struct {
	Path   string
	Status Status
	Diff   string
}

// Summary describes a Write call.
type Summary struct {
	Changes   []Change
	Created   int
	Updated   int
	Unchanged int
	DryRun    bool
}

// Changed reports whether any file was (or would be) written.
func (s Summary) Changed() bool {
	return s.Created+s.Updated > 0
}

var (
	ErrInvalidPath   = errors.New("output path escapes output root")
	ErrDuplicatePath = errors.New("output path rendered twice")
)

// WriteError wraps a failure to write one output file.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Writer
// =============================================================================

// Config configures a Writer.
type Config struct {
	Root         string
	DryRun       bool
	DiffContext  int
	MaxDiffBytes int // inputs larger than this get a placeholder diff, 0 means no limit
}

// Writer writes output files under a root directory.
type Writer struct {
	config Config
	logger *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(config Config, logger *slog.Logger) *Writer {
	if config.DiffContext <= 0 {
		config.DiffContext = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{config: config, logger: logger.With("component", "output")}
}

// Write validates every path first, then writes the files whose content
// differs from what is on disk. Files are replaced through a temporary file
// and rename. In dry-run mode nothing is written and each change carries a
// unified diff.
func (w *Writer) Write(files []File) (Summary, error) {
	summary := Summary{DryRun: w.config.DryRun}

	sorted := append([]File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	seen := make(map[string]bool, len(sorted))
	targets := make([]string, len(sorted))
	for i, f := range sorted {
		target, err := w.resolve(f.Path)
		if err != nil {
			return summary, err
		}
		if seen[target] {
			return summary, &WriteError{Path: f.Path, Op: "render", Err: ErrDuplicatePath}
		}
		seen[target] = true
		targets[i] = target
	}

	for i, f := range sorted {
		target := targets[i]
		existing, err := os.ReadFile(target)
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return summary, &WriteError{Path: f.Path, Op: "read", Err: err}
		}

		change := Change{Path: f.Path}
		switch {
		case exists && bytes.Equal(existing, f.Content):
			change.Status = StatusUnchanged
			summary.Unchanged++
		case exists:
			change.Status = StatusUpdated
			summary.Updated++
		default:
			change.Status = StatusCreated
			summary.Created++
		}

		if change.Status != StatusUnchanged {
			if w.config.DryRun {
				change.Diff = w.diff(f.Path, existing, f.Content, exists)
			} else if err := writeAtomic(target, f.Content); err != nil {
				return summary, &WriteError{Path: f.Path, Op: "write", Err: err}
			} else {
				w.logger.Info("wrote file", "path", f.Path, "status", change.Status)
			}
		}
		summary.Changes = append(summary.Changes, change)
	}

	w.logger.Info("output finished",
		"created", summary.Created, "updated", summary.Updated,
		"unchanged", summary.Unchanged, "dry_run", summary.DryRun)
	return summary, nil
}

func (w *Writer) resolve(rel string) (string, error) {
	p := filepath.FromSlash(rel)
	if p == "" || filepath.IsAbs(p) {
		return "", &WriteError{Path: rel, Op: "resolve", Err: ErrInvalidPath}
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &WriteError{Path: rel, Op: "resolve", Err: ErrInvalidPath}
	}
	return filepath.Join(w.config.Root, clean), nil
}

func (w *Writer) diff(name string, before, after []byte, exists bool) string {
	if w.config.MaxDiffBytes > 0 && len(before)+len(after) > w.config.MaxDiffBytes {
		return fmt.Sprintf("--- a/%s\n+++ b/%s\n@@ diff omitted (too large) @@\n", name, name)
	}
	from := "a/" + name
	var a []string
	if exists {
		a = difflib.SplitLines(string(before))
	} else {
		from = "/dev/null"
	}
	u := difflib.UnifiedDiff{
		A:        a,
		B:        difflib.SplitLines(string(after)),
		FromFile: from,
		ToFile:   "b/" + name,
		Context:  w.config.DiffContext,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return fmt.Sprintf("--- %s\n+++ b/%s\n@@ diff unavailable: %v @@\n", from, name, err)
	}
	return s
}

func writeAtomic(target string, content []byte) (err error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(content); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
