package baseline

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/roach88/ruleforge/internal/archive"
)

// Result summarizes one dependency archive build.
type Result struct {
	// Modules lists the allow-listed modules whose classes were copied.
	Modules []string
	// Classes is the number of class files in the archive.
	Classes int
	// Skipped lists allow-listed modules that contributed nothing because
	// they export no package or could not be read.
	Skipped []string
}

// Builder builds the dependency archive.
type Builder struct {
	Registry ModuleRegistry
	Allowed  map[string]bool
	// Lock is held for the whole build. It is the classpath overlay's
	// lock, so no index rebuild or compilation observes a partial archive.
	Lock   sync.Locker
	Logger *slog.Logger
}

// Build writes the dependency archive to target.
//
// Modules outside the allow-list are ignored. An allow-listed module
// without an Export-Package header is skipped with a warning. Class files
// that cannot be read are logged and skipped. The archive is published
// with whatever was copied; only a failure to create or commit the archive
// itself is returned.
func (b *Builder) Build(target string) (Result, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if b.Lock != nil {
		b.Lock.Lock()
		defer b.Lock.Unlock()
	}

	modules, err := b.Registry.Modules()
	if err != nil {
		return Result{}, fmt.Errorf("list modules: %w", err)
	}

	w, err := archive.Create(target, nil)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, m := range modules {
		if !b.Allowed[m.Name()] {
			logger.Debug("module not allow-listed", "module", m.Name())
			continue
		}
		header, ok := m.Header(ExportHeader)
		if !ok {
			logger.Warn("module does not export any package", "module", m.Name())
			res.Skipped = append(res.Skipped, m.Name())
			continue
		}
		copied, err := copyExported(w, m, ParseExports(header), logger)
		if err != nil {
			logger.Warn("failed to list module classes", "module", m.Name(), "error", err)
			res.Skipped = append(res.Skipped, m.Name())
			continue
		}
		res.Modules = append(res.Modules, m.Name())
		res.Classes += copied
	}

	if err := w.Commit(); err != nil {
		return Result{}, err
	}
	logger.Info("built dependency archive", "path", target, "modules", len(res.Modules), "classes", res.Classes)
	return res, nil
}

func copyExported(w *archive.Writer, m Module, exports []string, logger *slog.Logger) (int, error) {
	exported := make(map[string]bool, len(exports))
	for _, p := range exports {
		exported[p] = true
	}

	files, err := m.ClassFiles()
	if err != nil {
		return 0, err
	}

	copied := 0
	for _, entry := range files {
		dir := path.Dir(entry)
		if dir == "." || !exported[dir] {
			continue
		}
		data, err := readEntry(m, entry)
		if err != nil {
			logger.Warn("failed to copy class", "module", m.Name(), "entry", entry, "error", err)
			continue
		}
		if err := w.Add(entry, time.Time{}, bytes.NewReader(data)); err != nil {
			logger.Warn("failed to copy class", "module", m.Name(), "entry", entry, "error", err)
			continue
		}
		copied++
	}
	return copied, nil
}

func readEntry(m Module, entry string) ([]byte, error) {
	rc, err := m.Open(entry)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
