package filemgr

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/ruleforge/internal/archive"
	"github.com/roach88/ruleforge/internal/loader"
)

// ArchiveSuffix is the file suffix of library archives.
const ArchiveSuffix = ".jar"

// Snapshot is one generation of the overlay's index and loader. A Snapshot
// is never modified after it is published.
type Snapshot struct {
	Generation uint64
	// Packages maps a package name to the virtual class units of every
	// indexed archive, in archive order.
	Packages map[string][]FileObject
	Loader   *loader.ArchiveLoader
	// Archives lists every indexed archive, the dependency archive included.
	Archives []string
}

// OverlayOptions configures an Overlay.
type OverlayOptions struct {
	Base FileManager
	// LibDir is the watched library directory.
	LibDir string
	// Staging is the directory of staged units.
	Staging string
	// DependencyArchive is indexed for compilation but left out of the
	// loader, whose parent already resolves its classes.
	DependencyArchive string
	// Parent is consulted by the loader before the library archives.
	Parent loader.Resolver
	Logger *slog.Logger
}

// Overlay is the classpath overlay file manager.
//
// The overlay's mutex serializes index rebuilds, dependency archive builds
// and compilations; callers that compile against the overlay hold it for
// the whole compilation via Lock and Unlock. Reads of the current snapshot
// never block.
type Overlay struct {
	mu     sync.Mutex
	opts   OverlayOptions
	snap   atomic.Pointer[Snapshot]
	logger *slog.Logger
}

// NewOverlay creates an overlay with an empty generation-0 snapshot.
func NewOverlay(opts OverlayOptions) *Overlay {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Overlay{opts: opts, logger: logger}
	o.snap.Store(&Snapshot{
		Packages: map[string][]FileObject{},
		Loader:   loader.New(opts.Parent, 0, nil, logger),
	})
	return o
}

// Lock acquires the overlay lock.
func (o *Overlay) Lock() { o.mu.Lock() }

// Unlock releases the overlay lock.
func (o *Overlay) Unlock() { o.mu.Unlock() }

// Snapshot returns the current generation.
func (o *Overlay) Snapshot() *Snapshot {
	return o.snap.Load()
}

// Resolver resolves classes through whatever loader is current at the time
// of each call.
func (o *Overlay) Resolver() loader.Resolver {
	return loader.ResolverFunc(func(name string) ([]byte, error) {
		return o.Snapshot().Loader.Resolve(name)
	})
}

// RebuildIndex re-reads the library directory under the overlay lock and
// publishes the next generation. Unreadable archives are logged and left
// out; a library directory that cannot be listed keeps the current
// generation and returns the error.
func (o *Overlay) RebuildIndex() (*Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	archives, err := o.libraryArchives()
	if err != nil {
		o.logger.Warn("could not list libraries", "path", o.opts.LibDir, "error", err)
		return o.Snapshot(), err
	}

	gen := o.Snapshot().Generation + 1
	packages := make(map[string][]FileObject)
	var indexed, loadable []string
	for _, path := range archives {
		names, err := archive.ListEntries(path)
		if err != nil {
			o.logger.Warn("failed to process library", "path", path, "error", err)
			continue
		}
		indexed = append(indexed, path)
		for _, name := range names {
			if KindOf(name) != KindClass {
				continue
			}
			pkg := packageOf(name)
			packages[pkg] = append(packages[pkg], FileObject{Kind: KindClass, Path: path, Entry: name})
		}
		if !o.isDependencyArchive(path) {
			loadable = append(loadable, path)
		}
	}

	next := &Snapshot{
		Generation: gen,
		Packages:   packages,
		Loader:     loader.New(o.opts.Parent, gen, loadable, o.logger),
		Archives:   indexed,
	}
	o.snap.Store(next)
	o.logger.Debug("rebuilt library index", "generation", gen, "archives", len(indexed), "packages", len(packages))
	return next, nil
}

func (o *Overlay) libraryArchives() ([]string, error) {
	entries, err := os.ReadDir(o.opts.LibDir)
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ArchiveSuffix) {
			continue
		}
		archives = append(archives, filepath.Join(o.opts.LibDir, e.Name()))
	}
	sort.Strings(archives)
	return archives, nil
}

func (o *Overlay) isDependencyArchive(path string) bool {
	if o.opts.DependencyArchive == "" {
		return false
	}
	return filepath.Clean(path) == filepath.Clean(o.opts.DependencyArchive)
}

// List implements FileManager. Class listings on the class path get the
// current generation's virtual units of the package appended after the
// wrapped manager's results; units whose binary name the wrapped manager
// already returned are left out.
func (o *Overlay) List(loc Location, pkg string, kinds KindSet, recurse bool) ([]FileObject, error) {
	std, err := o.opts.Base.List(loc, pkg, kinds, recurse)
	if err != nil {
		return nil, err
	}
	if loc != LocationClassPath || !kinds.Has(KindClass) {
		return std, nil
	}

	seen := make(map[string]bool, len(std))
	for _, f := range std {
		if name, err := o.opts.Base.BinaryNameOf(f); err == nil {
			seen[name] = true
		}
	}

	snap := o.Snapshot()
	merged := append([]FileObject(nil), std...)
	for _, p := range packagesUnder(snap.Packages, pkg, recurse) {
		for _, f := range snap.Packages[p] {
			name, err := f.binaryName()
			if err != nil || seen[name] {
				continue
			}
			seen[name] = true
			merged = append(merged, f)
		}
	}
	return merged, nil
}

func packagesUnder(packages map[string][]FileObject, pkg string, recurse bool) []string {
	if !recurse {
		return []string{pkg}
	}
	var out []string
	for p := range packages {
		if inPackage(p, pkg, true) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// OutputFor implements FileManager. The output of a staged unit goes next
// to it: the sibling's directory plus the class's simple binary name, so
// nested classes land beside their outer class. Without a class name the
// sibling's extension is replaced.
func (o *Overlay) OutputFor(loc Location, className string, kind Kind, sibling *FileObject) (string, error) {
	if sibling == nil || !sibling.Staged {
		return o.opts.Base.OutputFor(loc, className, kind, sibling)
	}
	if className == "" {
		base := strings.TrimSuffix(sibling.Path, filepath.Ext(sibling.Path))
		return base + kind.Extension(), nil
	}
	simple := className
	if i := strings.LastIndexByte(className, '.'); i >= 0 {
		simple = className[i+1:]
	}
	return filepath.Join(filepath.Dir(sibling.Path), simple+kind.Extension()), nil
}

// BinaryNameOf implements FileManager. Staged units are named after their
// staging-relative path.
func (o *Overlay) BinaryNameOf(f FileObject) (string, error) {
	if !f.Staged {
		return o.opts.Base.BinaryNameOf(f)
	}
	if o.opts.Staging == "" {
		return "", errors.New("overlay has no staging directory")
	}
	f.Root = o.opts.Staging
	return f.binaryName()
}

// ClassPath implements FileManager: the wrapped entries followed by every
// indexed library archive.
func (o *Overlay) ClassPath() []string {
	return append(o.opts.Base.ClassPath(), o.Snapshot().Archives...)
}

// Staging returns the staging directory.
func (o *Overlay) Staging() string {
	return o.opts.Staging
}

// SourceUnit returns the staged source unit stored at path.
func (o *Overlay) SourceUnit(path string) FileObject {
	return FileObject{Kind: KindSource, Path: path, Root: o.opts.Staging, Staged: true}
}

// StagedUnits walks the staging directory and returns every staged unit of
// the given kind, sorted by path.
func (o *Overlay) StagedUnits(kind Kind) ([]FileObject, error) {
	found, err := listDir(o.opts.Staging, "", Kinds(kind), true)
	if err != nil {
		return nil, fmt.Errorf("walk staging: %w", err)
	}
	for i := range found {
		found[i].Staged = true
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}
