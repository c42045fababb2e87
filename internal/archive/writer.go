package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FileMode is the permission of published archives. Other processes on
// the host load them, so they are world-readable.
const FileMode os.FileMode = 0644

// tempSuffix ends the names of archives still being written.
const tempSuffix = ".tmp"

// Writer builds an archive in a temporary file next to its target and
// publishes it with a rename on Commit.
//
// Readers that open the target while a Writer is active see the previous
// archive; after Commit they see the complete new one. A Writer that is
// aborted (or whose Commit fails) leaves the target untouched.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	target string
	tmp    *os.File
	zw     *zip.Writer
	names  map[string]bool
	done   bool
}

// Create starts a new archive for target. The manifest is written as the
// first entry; pass nil for a plain version 1.0 manifest.
func Create(target string, manifest *Manifest) (*Writer, error) {
	dir := filepath.Dir(target)
	// The temp name must not carry the archive extension so that
	// directory watchers ignore the half-written file.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*"+tempSuffix)
	if err != nil {
		return nil, fmt.Errorf("create temp archive for %s: %w", target, err)
	}

	w := &Writer{
		target: target,
		tmp:    tmp,
		zw:     zip.NewWriter(tmp),
		names:  make(map[string]bool),
	}

	if manifest == nil {
		manifest = NewManifest()
	}
	if err := w.Add(ManifestPath, time.Time{}, bytes.NewReader(manifest.Format())); err != nil {
		w.Abort()
		return nil, err
	}
	return w, nil
}

// Add writes one entry. A zero modTime leaves the entry without a
// modification time. Adding the same name twice is an error.
func (w *Writer) Add(name string, modTime time.Time, content io.Reader) error {
	if w.done {
		return errors.New("archive writer already finished")
	}
	if w.names[name] {
		return fmt.Errorf("duplicate archive entry %q", name)
	}

	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !modTime.IsZero() {
		header.Modified = modTime
	}
	ew, err := w.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s to %s: %w", name, w.target, err)
	}
	if _, err := io.Copy(ew, content); err != nil {
		return fmt.Errorf("add %s to %s: %w", name, w.target, err)
	}
	w.names[name] = true
	return nil
}

// Len returns the number of entries written so far, manifest included.
func (w *Writer) Len() int {
	return len(w.names)
}

// Commit finishes the archive and atomically replaces the target.
func (w *Writer) Commit() error {
	if w.done {
		return errors.New("archive writer already finished")
	}
	w.done = true

	if err := w.zw.Close(); err != nil {
		w.discard()
		return fmt.Errorf("finish archive %s: %w", w.target, err)
	}
	if err := w.tmp.Chmod(FileMode); err != nil {
		w.discard()
		return fmt.Errorf("chmod archive %s: %w", w.target, err)
	}
	if err := w.tmp.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("sync archive %s: %w", w.target, err)
	}
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("close archive %s: %w", w.target, err)
	}
	if err := os.Rename(w.tmp.Name(), w.target); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("publish archive %s: %w", w.target, err)
	}
	return nil
}

// Abort discards the temporary file. Safe to call after Commit.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.discard()
}

func (w *Writer) discard() {
	w.tmp.Close()
	os.Remove(w.tmp.Name())
}

// RemoveStale deletes the temporary files that writers for archives in dir
// left behind when the process died before Commit or Abort. It returns the
// removed paths. Only call it while no Writer is active in dir.
func RemoveStale(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, ".*.jar.*"+tempSuffix))
	if err != nil {
		return nil, fmt.Errorf("find stale archives in %s: %w", dir, err)
	}
	var removed []string
	var errs []error
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("remove stale archive: %w", err))
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
