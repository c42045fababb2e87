package compiler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/ruleforge/internal/filemgr"
)

// LintOptions are passed to every compilation of the staging directory.
var LintOptions = []string{"-Xlint:unchecked", "-Xlint:varargs"}

// Toolchain compiles units using the given file manager for every lookup
// and output. ok is false when compilation failed; err is reserved for a
// toolchain that could not run at all.
type Toolchain interface {
	Run(units []filemgr.FileObject, fm filemgr.FileManager, listener DiagnosticListener, options []string) (ok bool, err error)
}

// CompileError is returned when the toolchain reports a failed compilation.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "compilation failed"
	}
	return Join(e.Diagnostics)
}

// IsCompileError reports whether err is, or wraps, a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// Compiler invokes a Toolchain with its own diagnostics collector.
type Compiler struct {
	toolchain Toolchain
	collector *Collector
	logger    *slog.Logger
}

// New creates a Compiler for a toolchain.
func New(tc Toolchain, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{toolchain: tc, collector: &Collector{}, logger: logger}
}

// Compile runs the toolchain synchronously. A failed compilation returns a
// *CompileError whose message is the newline-joined diagnostics. The
// collector is drained after every run, whatever the outcome, so
// diagnostics never carry over to the next compilation.
func (c *Compiler) Compile(units []filemgr.FileObject, fm filemgr.FileManager, options []string) error {
	ok, err := c.toolchain.Run(units, fm, c.collector, options)
	diags := c.collector.Drain()
	if err != nil {
		return fmt.Errorf("run compiler: %w", err)
	}
	if !ok {
		return &CompileError{Diagnostics: diags}
	}
	for _, d := range diags {
		c.logger.Debug("compiler diagnostic", "diagnostic", d.String())
	}
	return nil
}
