package baseline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/ruleforge/internal/archive"
)

// Module is a host module: a named unit of code with manifest headers and
// class files.
type Module interface {
	Name() string
	// Header returns a manifest attribute of the module.
	Header(key string) (string, bool)
	// ClassFiles lists the class file entries ("a/b/C.class").
	ClassFiles() ([]string, error)
	// Open opens one entry for reading.
	Open(entry string) (io.ReadCloser, error)
}

// ModuleRegistry lists the modules installed in the host.
type ModuleRegistry interface {
	Modules() ([]Module, error)
}

// DirRegistry is a ModuleRegistry over a directory of module archives.
// Every *.jar directly inside the directory whose manifest names the module
// is one module.
type DirRegistry struct {
	dir    string
	logger *slog.Logger
}

// NewDirRegistry creates a registry for dir.
func NewDirRegistry(dir string, logger *slog.Logger) *DirRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirRegistry{dir: dir, logger: logger}
}

// Modules reads every module archive. Archives without a readable manifest
// or without a module name are logged and skipped.
func (r *DirRegistry) Modules() ([]Module, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read module dir %s: %w", r.dir, err)
	}

	var modules []Module
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jar") {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		m, err := archive.ReadManifest(path)
		if err != nil {
			r.logger.Warn("skipping module without readable manifest", "path", path, "error", err)
			continue
		}
		header, ok := m.Get(NameHeader)
		if !ok || SymbolicName(header) == "" {
			r.logger.Warn("skipping module without symbolic name", "path", path)
			continue
		}
		modules = append(modules, &ArchiveModule{name: SymbolicName(header), path: path, manifest: m})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name() < modules[j].Name() })
	return modules, nil
}

// ArchiveModule is a Module backed by a single archive.
type ArchiveModule struct {
	name     string
	path     string
	manifest *archive.Manifest
}

func (m *ArchiveModule) Name() string { return m.name }

// Path returns the archive path.
func (m *ArchiveModule) Path() string { return m.path }

func (m *ArchiveModule) Header(key string) (string, bool) {
	return m.manifest.Get(key)
}

func (m *ArchiveModule) ClassFiles() ([]string, error) {
	entries, err := archive.ListEntries(m.path)
	if err != nil {
		return nil, err
	}
	classes := entries[:0]
	for _, e := range entries {
		if strings.HasSuffix(e, ".class") {
			classes = append(classes, e)
		}
	}
	return classes, nil
}

func (m *ArchiveModule) Open(entry string) (io.ReadCloser, error) {
	return archive.OpenEntry(m.path, entry)
}
