// Package diag defines the structured, non-fatal diagnostics produced while
// planning and deploying. Diagnostics never stop a run; they describe one
// excluded item (a link path, a deploy mapping) each.
package diag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindMissingLinkPath           Kind = "missing-link-path"
	KindMissingDeploySource       Kind = "missing-deploy-source"
	KindDeployCopyFailed          Kind = "deploy-copy-failed"
	KindUnclassifiedConfiguration Kind = "unclassified-configuration"
)

// Diagnostic is a recoverable condition tied to one library item.
type Diagnostic struct {
	Kind          Kind   `json:"kind"`
	Library       string `json:"library,omitempty"`
	Path          string `json:"path,omitempty"`
	Platform      string `json:"platform,omitempty"`
	Configuration string `json:"configuration,omitempty"`
	Target        string `json:"target,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	if d.Library != "" {
		fmt.Fprintf(&b, " library=%s", d.Library)
	}
	if d.Platform != "" || d.Configuration != "" {
		fmt.Fprintf(&b, " target=%s/%s", d.Platform, d.Configuration)
	}
	if d.Path != "" {
		fmt.Fprintf(&b, " path=%s", d.Path)
	}
	if d.Target != "" {
		fmt.Fprintf(&b, " dest=%s", d.Target)
	}
	if d.Message != "" {
		fmt.Fprintf(&b, ": %s", d.Message)
	}
	return b.String()
}

// Sort orders diagnostics by kind, library, configuration, platform and path.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Library != b.Library {
			return a.Library < b.Library
		}
		if a.Configuration != b.Configuration {
			return a.Configuration < b.Configuration
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.Path < b.Path
	})
}

// =============================================================================
// Sinks
// =============================================================================

// Sink receives diagnostics as they are produced.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(d Diagnostic)

// Report calls f(d).
func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})

// Collector accumulates diagnostics. Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Report appends d.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, d)
}

// Diagnostics returns a copy of everything reported so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.items...)
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Tee fans every diagnostic out to all sinks in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s.Report(d)
			}
		}
	})
}
