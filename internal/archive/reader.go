package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// ErrEntryNotFound is returned when an archive has no entry with the
// requested name.
var ErrEntryNotFound = errors.New("entry not found")

// ListEntries returns the names of all file entries of the archive at path,
// in archive order. Directory entries are omitted.
func ListEntries(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// ReadEntry opens the archive at path, reads one entry completely and
// closes the archive again. No handle outlives the call.
func ReadEntry(path, name string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer zr.Close()

	f, err := zr.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s!/%s: %w", path, name, ErrEntryNotFound)
		}
		return nil, fmt.Errorf("open %s!/%s: %w", path, name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s!/%s: %w", path, name, err)
	}
	return data, nil
}

// ReadManifest reads the manifest of the archive at path.
// Returns ErrEntryNotFound (wrapped) when the archive has no manifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := ReadEntry(path, ManifestPath)
	if err != nil {
		return nil, err
	}
	return ParseManifest(bytes.NewReader(data))
}

// entryReader is an io.ReadCloser that also closes the archive it came from.
type entryReader struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (r *entryReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenEntry opens one entry for streaming. Closing the returned reader
// closes the archive.
func OpenEntry(path, name string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	f, err := zr.Open(name)
	if err != nil {
		zr.Close()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s!/%s: %w", path, name, ErrEntryNotFound)
		}
		return nil, fmt.Errorf("open %s!/%s: %w", path, name, err)
	}
	return &entryReader{ReadCloser: f, archive: zr}, nil
}
