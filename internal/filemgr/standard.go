package filemgr

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/ruleforge/internal/archive"
)

// FileManager is the compiler's view of the filesystem.
type FileManager interface {
	// List returns the units of a package at a location, restricted to the
	// given kinds. With recurse, subpackages are included.
	List(loc Location, pkg string, kinds KindSet, recurse bool) ([]FileObject, error)
	// OutputFor returns the path the compiled form of className is written
	// to. sibling is the source unit it was compiled from, or nil.
	OutputFor(loc Location, className string, kind Kind, sibling *FileObject) (string, error)
	// BinaryNameOf returns the binary name of a unit.
	BinaryNameOf(f FileObject) (string, error)
	// ClassPath returns the entries the compiler resolves classes against.
	ClassPath() []string
}

// Standard is the FileManager for the standard classpath: directories and
// archives given at construction, plus an output directory.
//
// Archive entry names are read once, at construction. Directories are read
// on every call.
type Standard struct {
	classpath []string
	output    string
	// entries maps each readable classpath archive to its entry names.
	entries map[string][]string
	logger  *slog.Logger
}

// NewStandard creates a Standard file manager. Classpath archives that
// cannot be read are logged and ignored.
func NewStandard(classpath []string, output string, logger *slog.Logger) *Standard {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Standard{
		output:  output,
		entries: make(map[string][]string),
		logger:  logger,
	}
	for _, entry := range classpath {
		info, err := os.Stat(entry)
		if err != nil {
			logger.Warn("ignoring missing classpath entry", "path", entry, "error", err)
			continue
		}
		if !info.IsDir() {
			names, err := archive.ListEntries(entry)
			if err != nil {
				logger.Warn("ignoring unreadable classpath archive", "path", entry, "error", err)
				continue
			}
			s.entries[entry] = names
		}
		s.classpath = append(s.classpath, entry)
	}
	return s
}

// Output returns the class output directory.
func (s *Standard) Output() string {
	return s.output
}

// List implements FileManager. Results follow classpath order, then name
// order within a directory or archive.
func (s *Standard) List(loc Location, pkg string, kinds KindSet, recurse bool) ([]FileObject, error) {
	switch loc {
	case LocationClassPath:
		var out []FileObject
		for _, entry := range s.classpath {
			var (
				found []FileObject
				err   error
			)
			if names, ok := s.entries[entry]; ok {
				found = listArchive(entry, names, pkg, kinds, recurse)
			} else {
				found, err = listDir(entry, pkg, kinds, recurse)
			}
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}
		return out, nil
	case LocationClassOutput:
		if s.output == "" {
			return nil, nil
		}
		return listDir(s.output, pkg, kinds, recurse)
	default:
		return nil, nil
	}
}

// OutputFor implements FileManager: the output directory plus the class
// name as a path.
func (s *Standard) OutputFor(loc Location, className string, kind Kind, sibling *FileObject) (string, error) {
	if loc != LocationClassOutput {
		return "", fmt.Errorf("no output for location %s", loc)
	}
	if s.output == "" {
		return "", errors.New("no class output directory")
	}
	if className == "" {
		return "", errors.New("output for empty class name")
	}
	rel := strings.ReplaceAll(className, ".", string(filepath.Separator)) + kind.Extension()
	return filepath.Join(s.output, rel), nil
}

// BinaryNameOf implements FileManager.
func (s *Standard) BinaryNameOf(f FileObject) (string, error) {
	return f.binaryName()
}

// ClassPath implements FileManager.
func (s *Standard) ClassPath() []string {
	return append([]string(nil), s.classpath...)
}

// Has reports whether a class is resolvable on the standard classpath.
func (s *Standard) Has(binaryName string) bool {
	entry := strings.ReplaceAll(binaryName, ".", "/") + KindClass.Extension()
	for _, cp := range s.classpath {
		if names, ok := s.entries[cp]; ok {
			for _, n := range names {
				if n == entry {
					return true
				}
			}
			continue
		}
		if _, err := os.Stat(filepath.Join(cp, filepath.FromSlash(entry))); err == nil {
			return true
		}
	}
	return false
}

func listArchive(path string, names []string, pkg string, kinds KindSet, recurse bool) []FileObject {
	var out []FileObject
	for _, name := range names {
		kind := KindOf(name)
		if !kinds.Has(kind) || !inPackage(packageOf(name), pkg, recurse) {
			continue
		}
		out = append(out, FileObject{Kind: kind, Path: path, Entry: name})
	}
	return out
}

func listDir(root, pkg string, kinds KindSet, recurse bool) ([]FileObject, error) {
	dir := root
	if pkg != "" {
		dir = filepath.Join(root, strings.ReplaceAll(pkg, ".", string(filepath.Separator)))
	}

	var out []FileObject
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if path != dir && !recurse {
				return fs.SkipDir
			}
			return nil
		}
		kind := KindOf(d.Name())
		if kinds.Has(kind) {
			out = append(out, FileObject{Kind: kind, Path: path, Root: root})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return out, nil
}

func inPackage(candidate, pkg string, recurse bool) bool {
	if candidate == pkg {
		return true
	}
	if !recurse {
		return false
	}
	return pkg == "" || strings.HasPrefix(candidate, pkg+".")
}
