// Package report renders diagnostics and run summaries for humans and logs.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/artpar/buildgen/internal/core/diag"
)

// =============================================================================
// Log Sink
// =============================================================================

// LogSink forwards diagnostics to a structured logger at warn level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "diagnostics")}
}

// Report logs d.
func (s *LogSink) Report(d diag.Diagnostic) {
	attrs := []any{"kind", string(d.Kind)}
	if d.Library != "" {
		attrs = append(attrs, "library", d.Library)
	}
	if d.Platform != "" {
		attrs = append(attrs, "platform", d.Platform)
	}
	if d.Configuration != "" {
		attrs = append(attrs, "configuration", d.Configuration)
	}
	if d.Path != "" {
		attrs = append(attrs, "path", d.Path)
	}
	if d.Target != "" {
		attrs = append(attrs, "target", d.Target)
	}
	msg := d.Message
	if msg == "" {
		msg = string(d.Kind)
	}
	s.logger.Warn(msg, attrs...)
}

// =============================================================================
// Console Sink
// =============================================================================

type styles struct {
	kind  lipgloss.Style
	muted lipgloss.Style
	ok    lipgloss.Style
	bad   lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		return styles{
			kind:  lipgloss.NewStyle(),
			muted: lipgloss.NewStyle(),
			ok:    lipgloss.NewStyle(),
			bad:   lipgloss.NewStyle(),
		}
	}
	return styles{
		kind:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"}),
		bad:   lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}),
	}
}

// ConsoleSink prints one line per diagnostic. Safe for concurrent use.
type ConsoleSink struct {
	mu     sync.Mutex
	w      io.Writer
	styles styles
}

// NewConsoleSink creates a ConsoleSink writing to w. Output is colored only
// when w is a terminal.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w, styles: newStyles(IsTerminal(w))}
}

// IsTerminal reports whether w is an *os.File attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Report writes d as a single line.
func (s *ConsoleSink) Report(d diag.Diagnostic) {
	line := s.format(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}

func (s *ConsoleSink) format(d diag.Diagnostic) string {
	out := s.styles.kind.Render("warning["+string(d.Kind)+"]")
	if d.Library != "" {
		out += " " + d.Library
	}
	if d.Platform != "" || d.Configuration != "" {
		out += " " + s.styles.muted.Render("("+d.Platform+"/"+d.Configuration+")")
	}
	if d.Path != "" {
		out += " " + d.Path
	}
	if d.Target != "" {
		out += " -> " + d.Target
	}
	if d.Message != "" {
		out += ": " + d.Message
	}
	return out
}

// Summary prints the closing line of a run.
func (s *ConsoleSink) Summary(projects, files, diagnostics, failed int) {
	status := s.styles.ok.Render("ok")
	if failed > 0 {
		status = s.styles.bad.Render(fmt.Sprintf("%d deploy failures", failed))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s %s\n", status,
		s.styles.muted.Render(fmt.Sprintf("%d projects, %d files changed, %d diagnostics", projects, files, diagnostics)))
}
