// Package compilertest provides an in-process Toolchain for tests.
package compilertest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/ruleforge/internal/compiler"
	"github.com/roach88/ruleforge/internal/filemgr"
)

// Toolchain "compiles" a unit by writing "compiled:<binary name>" to the
// output the file manager assigns it. A unit with unbalanced braces fails
// with an error diagnostic, like a truncated source would.
//
// Thread-safety: All methods are safe for concurrent use.
type Toolchain struct {
	// Err, when set, is returned from Run as a toolchain that cannot start.
	Err error

	mu      sync.Mutex
	runs    int
	options [][]string
}

// Run implements compiler.Toolchain.
func (tc *Toolchain) Run(units []filemgr.FileObject, fm filemgr.FileManager, listener compiler.DiagnosticListener, options []string) (bool, error) {
	tc.mu.Lock()
	tc.runs++
	tc.options = append(tc.options, append([]string(nil), options...))
	tc.mu.Unlock()

	if tc.Err != nil {
		return false, tc.Err
	}

	ok := true
	for _, u := range units {
		src, err := read(u)
		if err != nil {
			listener.Report(compiler.Diagnostic{Severity: compiler.SeverityError, Source: u.Path, Message: err.Error()})
			ok = false
			continue
		}
		if strings.Count(src, "{") != strings.Count(src, "}") {
			listener.Report(compiler.Diagnostic{
				Severity: compiler.SeverityError,
				Source:   u.Path,
				Line:     strings.Count(src, "\n") + 1,
				Message:  "reached end of file while parsing",
			})
			ok = false
		}
	}
	if !ok {
		return false, nil
	}

	for i := range units {
		name, err := fm.BinaryNameOf(units[i])
		if err != nil {
			return false, err
		}
		out, err := fm.OutputFor(filemgr.LocationClassOutput, name, filemgr.KindClass, &units[i])
		if err != nil {
			return false, err
		}
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return false, err
		}
		if err := os.WriteFile(out, []byte("compiled:"+name), 0644); err != nil {
			return false, fmt.Errorf("write %s: %w", out, err)
		}
	}
	return true, nil
}

// Runs returns how many times Run was called.
func (tc *Toolchain) Runs() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.runs
}

// Options returns the options of every run, in order.
func (tc *Toolchain) Options() [][]string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([][]string(nil), tc.options...)
}

func read(u filemgr.FileObject) (string, error) {
	rc, err := u.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	return string(data), err
}
