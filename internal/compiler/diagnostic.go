package compiler

import (
	"fmt"
	"strings"
	"sync"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Diagnostic is one message reported by the toolchain. Source is empty and
// Line zero for messages not tied to a file.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Source   string   `json:"source,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Source == "":
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	case d.Line == 0:
		return fmt.Sprintf("%s: %s: %s", d.Source, d.Severity, d.Message)
	default:
		return fmt.Sprintf("%s:%d: %s: %s", d.Source, d.Line, d.Severity, d.Message)
	}
}

// DiagnosticListener receives diagnostics while a toolchain runs.
type DiagnosticListener interface {
	Report(d Diagnostic)
}

// Collector buffers diagnostics until they are drained.
//
// Thread-safety: All methods are safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Report implements DiagnosticListener.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// Drain returns the buffered diagnostics and empties the buffer.
func (c *Collector) Drain() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.diags
	c.diags = nil
	return out
}

// Len returns the number of buffered diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.diags)
}

// Join renders diagnostics one per line.
func Join(diags []Diagnostic) string {
	lines := make([]string, len(diags))
	for i, d := range diags {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
