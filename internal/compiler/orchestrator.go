package compiler

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/ruleforge/internal/archive"
	"github.com/roach88/ruleforge/internal/filemgr"
)

// Result summarizes one successful rebuild.
type Result struct {
	// Sources is the number of staged sources compiled.
	Sources int
	// Classes is the number of classes packaged.
	Classes int
	// Archive is the published helper archive.
	Archive string
}

// Orchestrator rebuilds the published helper archive from the staging
// directory of an overlay.
type Orchestrator struct {
	Overlay  *filemgr.Overlay
	Compiler *Compiler
	// Target is the published helper archive.
	Target string
	Logger *slog.Logger
}

// Rebuild compiles every staged source and, when that succeeds, packages
// every staged class into Target with a fresh manifest.
//
// The overlay lock is held for the whole cycle. Class files left over from
// the previous cycle are removed first, so the archive only ever holds
// classes of the current sources. Any failure leaves the previously
// published archive untouched; the archive is replaced by rename only
// after it was written completely.
func (o *Orchestrator) Rebuild() (Result, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o.Overlay.Lock()
	defer o.Overlay.Unlock()

	stale, err := o.Overlay.StagedUnits(filemgr.KindClass)
	if err != nil {
		return Result{}, err
	}
	for _, u := range stale {
		if err := os.Remove(u.Path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove stale class", "path", u.Path, "error", err)
		}
	}

	sources, err := o.Overlay.StagedUnits(filemgr.KindSource)
	if err != nil {
		return Result{}, err
	}
	res := Result{Sources: len(sources), Archive: o.Target}
	if len(sources) > 0 {
		logger.Debug("compiling staged sources", "units", len(sources))
		if err := o.Compiler.Compile(sources, o.Overlay, LintOptions); err != nil {
			return res, err
		}
	}

	classes, err := o.Overlay.StagedUnits(filemgr.KindClass)
	if err != nil {
		return res, err
	}
	n, err := o.pack(classes)
	if err != nil {
		return res, err
	}
	res.Classes = n
	logger.Debug("published helper archive", "path", o.Target, "classes", n)
	return res, nil
}

// pack writes the staged classes into Target. Entries are named after
// their staging-relative path, sorted, and carry the files' modification
// times.
func (o *Orchestrator) pack(classes []filemgr.FileObject) (int, error) {
	type entry struct {
		name string
		path string
	}
	entries := make([]entry, 0, len(classes))
	for _, c := range classes {
		rel, err := filepath.Rel(o.Overlay.Staging(), c.Path)
		if err != nil {
			return 0, fmt.Errorf("package %s: %w", c.Path, err)
		}
		entries = append(entries, entry{name: filepath.ToSlash(rel), path: c.Path})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	w, err := archive.Create(o.Target, nil)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := addFile(w, e.name, e.path); err != nil {
			w.Abort()
			return 0, fmt.Errorf("package %s: %w", e.path, err)
		}
	}
	if err := w.Commit(); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func addFile(w *archive.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return w.Add(name, info.ModTime(), f)
}
