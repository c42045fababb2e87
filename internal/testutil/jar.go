package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleforge/internal/archive"
)

// WriteJar writes an archive at path holding the given entries. Entries
// are added in sorted order after the manifest. Parent directories are
// created as needed.
func WriteJar(t testing.TB, path string, entries map[string]string) string {
	t.Helper()
	return WriteModuleJar(t, path, nil, entries)
}

// WriteModuleJar is WriteJar with extra main-section manifest attributes,
// such as Bundle-SymbolicName and Export-Package.
func WriteModuleJar(t testing.TB, path string, headers map[string]string, entries map[string]string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	manifest := archive.NewManifest()
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		manifest.Set(k, headers[k])
	}

	w, err := archive.Create(path, manifest)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		require.NoError(t, w.Add(name, time.Time{}, strings.NewReader(entries[name])))
	}
	require.NoError(t, w.Commit())
	return path
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// ReadFile returns the content of path as a string.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
