package filemgr

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/ruleforge/internal/archive"
)

// Kind is the kind of a compilation unit.
type Kind int

const (
	KindOther Kind = iota
	KindSource
	KindClass
)

// Extension returns the file suffix of the kind ("" for KindOther).
func (k Kind) Extension() string {
	switch k {
	case KindSource:
		return ".java"
	case KindClass:
		return ".class"
	default:
		return ""
	}
}

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindClass:
		return "class"
	default:
		return "other"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(s) {
	case "source":
		return KindSource, true
	case "class":
		return KindClass, true
	case "other":
		return KindOther, true
	default:
		return KindOther, false
	}
}

// KindOf infers the kind from a file or entry name.
func KindOf(name string) Kind {
	switch {
	case strings.HasSuffix(name, KindSource.Extension()):
		return KindSource
	case strings.HasSuffix(name, KindClass.Extension()):
		return KindClass
	default:
		return KindOther
	}
}

// KindSet is a set of kinds.
type KindSet uint8

// Kinds builds a KindSet.
func Kinds(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	return s&(1<<k) != 0
}

// Location is a place the compiler looks for, or writes, units.
type Location int

const (
	LocationClassPath Location = iota
	LocationSourcePath
	LocationClassOutput
)

func (l Location) String() string {
	switch l {
	case LocationClassPath:
		return "CLASS_PATH"
	case LocationSourcePath:
		return "SOURCE_PATH"
	case LocationClassOutput:
		return "CLASS_OUTPUT"
	default:
		return fmt.Sprintf("Location(%d)", int(l))
	}
}

// FileObject is one compilation unit.
//
// A unit is either a plain file (Entry empty) or an entry of an archive at
// Path. Root is the directory a plain file's binary name is relative to.
// Staged marks units living in the staging directory; their outputs and
// binary names are derived from their path.
type FileObject struct {
	Kind   Kind
	Path   string
	Entry  string
	Root   string
	Staged bool
}

// IsArchived reports whether the unit is an archive entry.
func (f FileObject) IsArchived() bool {
	return f.Entry != ""
}

// Open opens the unit's content.
func (f FileObject) Open() (io.ReadCloser, error) {
	if f.IsArchived() {
		return archive.OpenEntry(f.Path, f.Entry)
	}
	return os.Open(f.Path)
}

// String renders the unit as "path" or "path!/entry".
func (f FileObject) String() string {
	if f.IsArchived() {
		return f.Path + "!/" + f.Entry
	}
	return f.Path
}

// binaryName derives a binary name from the unit's location: the entry
// name for archived units, the Root-relative path for plain files.
func (f FileObject) binaryName() (string, error) {
	rel := f.Entry
	if !f.IsArchived() {
		if f.Root == "" {
			return "", fmt.Errorf("no root for %s", f.Path)
		}
		r, err := filepath.Rel(f.Root, f.Path)
		if err != nil {
			return "", fmt.Errorf("binary name of %s: %w", f.Path, err)
		}
		if strings.HasPrefix(r, "..") {
			return "", fmt.Errorf("binary name of %s: outside %s", f.Path, f.Root)
		}
		rel = filepath.ToSlash(r)
	}
	if i := strings.LastIndexByte(rel, '.'); i > strings.LastIndexByte(rel, '/') {
		rel = rel[:i]
	}
	return strings.ReplaceAll(rel, "/", "."), nil
}

// packageOf returns the package of a slash-separated entry name.
func packageOf(entry string) string {
	i := strings.LastIndexByte(entry, '/')
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(entry[:i], "/", ".")
}
