package archive

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/ruleforge/internal/ir"
)

// ManifestPath is the entry name of the manifest inside an archive.
const ManifestPath = "META-INF/MANIFEST.MF"

// Manifest holds the main section of an archive manifest.
//
// Keys are matched case-insensitively, as the manifest format requires.
// Insertion order is preserved so that formatting is deterministic.
type Manifest struct {
	keys   []string
	values map[string]string
}

// NewManifest returns a manifest carrying only Manifest-Version.
func NewManifest() *Manifest {
	m := &Manifest{values: make(map[string]string)}
	m.Set("Manifest-Version", ir.ManifestVersion)
	return m
}

// Get returns the value of an attribute of the main section.
func (m *Manifest) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[strings.ToLower(key)]
	return v, ok
}

// Set sets an attribute of the main section.
func (m *Manifest) Set(key, value string) {
	lower := strings.ToLower(key)
	if _, exists := m.values[lower]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[lower] = value
}

// ParseManifest reads the main section of a manifest.
//
// Continuation lines (starting with a single space) are joined to the
// previous attribute. Parsing stops at the first blank line, which ends the
// main section; per-entry sections are not needed here.
func ParseManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{values: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lastKey string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, " ") {
			if lastKey == "" {
				return nil, fmt.Errorf("manifest line %d: continuation without attribute", lineNo)
			}
			lower := strings.ToLower(lastKey)
			m.values[lower] += line[1:]
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("manifest line %d: missing ':' in %q", lineNo, line)
		}
		lastKey = strings.TrimSpace(key)
		m.Set(lastKey, strings.TrimPrefix(value, " "))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}

// Format renders the main section with CRLF line endings and the trailing
// blank line the manifest format expects. Manifest-Version always comes first.
func (m *Manifest) Format() []byte {
	var b strings.Builder
	version, ok := m.Get("Manifest-Version")
	if !ok {
		version = ir.ManifestVersion
	}
	b.WriteString("Manifest-Version: " + version + "\r\n")
	for _, key := range m.keys {
		if strings.EqualFold(key, "Manifest-Version") {
			continue
		}
		b.WriteString(key + ": " + m.values[strings.ToLower(key)] + "\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}
