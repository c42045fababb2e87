// Package loader resolves fully-qualified class names to class bytes stored
// inside a set of archives.
//
// An ArchiveLoader scans the entry names of every archive once, when it is
// built, and afterwards re-opens the owning archive for each resolution.
// No archive handle outlives a call to Resolve.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/ruleforge/internal/archive"
)

// ClassSuffix is the entry suffix of compiled classes.
const ClassSuffix = ".class"

// ErrClassNotFound is matched by every ClassNotFoundError.
var ErrClassNotFound = errors.New("class not found")

// ClassNotFoundError reports that a class could not be resolved. Cause is
// nil when no archive claims the class, and the underlying I/O error when
// the owning archive could not be read.
type ClassNotFoundError struct {
	Name  string
	Cause error
}

func (e *ClassNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("class not found: %s: %v", e.Name, e.Cause)
	}
	return "class not found: " + e.Name
}

// Is makes errors.Is(err, ErrClassNotFound) hold.
func (e *ClassNotFoundError) Is(target error) bool {
	return target == ErrClassNotFound
}

func (e *ClassNotFoundError) Unwrap() error {
	return e.Cause
}

// Resolver is the capability of turning a fully-qualified class name into
// class bytes.
type Resolver interface {
	Resolve(name string) ([]byte, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) ([]byte, error)

// Resolve calls f(name).
func (f ResolverFunc) Resolve(name string) ([]byte, error) {
	return f(name)
}

// ArchiveLoader is an immutable class-name index over a set of archives.
type ArchiveLoader struct {
	parent     Resolver
	generation uint64
	archives   []string
	// classes maps a binary name ("a.b.C") to the archive holding it.
	classes map[string]string
}

// New scans every archive and returns a loader for them. Archives that
// cannot be read are logged and left out. When two archives contain the
// same class, the first one listed wins.
func New(parent Resolver, generation uint64, archives []string, logger *slog.Logger) *ArchiveLoader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &ArchiveLoader{
		parent:     parent,
		generation: generation,
		classes:    make(map[string]string),
	}
	for _, path := range archives {
		entries, err := archive.ListEntries(path)
		if err != nil {
			logger.Warn("skipping unreadable archive", "path", path, "error", err)
			continue
		}
		l.archives = append(l.archives, path)
		for _, entry := range entries {
			name, ok := BinaryName(entry)
			if !ok {
				continue
			}
			if _, seen := l.classes[name]; !seen {
				l.classes[name] = path
			}
		}
	}
	return l
}

// BinaryName converts an archive entry name ("a/b/C.class") into a binary
// class name ("a.b.C"). ok is false for entries that are not classes.
func BinaryName(entry string) (string, bool) {
	if !strings.HasSuffix(entry, ClassSuffix) {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimSuffix(entry, ClassSuffix), "/", "."), true
}

// EntryName converts a binary class name into its archive entry name.
func EntryName(name string) string {
	return strings.ReplaceAll(name, ".", "/") + ClassSuffix
}

// Resolve returns the bytes of a class. The parent is asked first; only
// when it does not know the class are the loader's own archives consulted.
func (l *ArchiveLoader) Resolve(name string) ([]byte, error) {
	if l.parent != nil {
		data, err := l.parent.Resolve(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, err
		}
	}

	path, ok := l.classes[name]
	if !ok {
		return nil, &ClassNotFoundError{Name: name}
	}
	data, err := archive.ReadEntry(path, EntryName(name))
	if err != nil {
		return nil, &ClassNotFoundError{Name: name, Cause: err}
	}
	return data, nil
}

// Origin returns the archive Resolve serves a class from, or "" when the
// parent serves it.
func (l *ArchiveLoader) Origin(name string) (string, error) {
	if l.parent != nil {
		_, err := l.parent.Resolve(name)
		if err == nil {
			return "", nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return "", err
		}
	}
	path, ok := l.classes[name]
	if !ok {
		return "", &ClassNotFoundError{Name: name}
	}
	return path, nil
}

// Has reports whether one of the loader's own archives claims the class.
func (l *ArchiveLoader) Has(name string) bool {
	_, ok := l.classes[name]
	return ok
}

// ArchiveOf returns the archive claiming the class.
func (l *ArchiveLoader) ArchiveOf(name string) (string, bool) {
	path, ok := l.classes[name]
	return path, ok
}

// Classes returns every indexed binary name, sorted.
func (l *ArchiveLoader) Classes() []string {
	names := make([]string, 0, len(l.classes))
	for name := range l.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Archives returns the archives that were indexed successfully.
func (l *ArchiveLoader) Archives() []string {
	return append([]string(nil), l.archives...)
}

// Generation returns the generation the loader was built for.
func (l *ArchiveLoader) Generation() uint64 {
	return l.generation
}
