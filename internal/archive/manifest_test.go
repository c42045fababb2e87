package archive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifestContinuationLines(t *testing.T) {
	src := "Manifest-Version: 1.0\r\n" +
		"Bundle-SymbolicName: org.openhab.core.thing\r\n" +
		"Export-Package: org.openhab.core.thing;version=\"4.0.0\",org.openhab.c\r\n" +
		" ore.thing.binding;uses:=\"org.openhab.core.thing\"\r\n" +
		"\r\n" +
		"Name: ignored/Entry.class\r\n" +
		"SHA-256-Digest: abc\r\n"

	m, err := ParseManifest(strings.NewReader(src))
	require.NoError(t, err)

	name, ok := m.Get("Bundle-SymbolicName")
	require.True(t, ok)
	assert.Equal(t, "org.openhab.core.thing", name)

	exports, ok := m.Get("export-package")
	require.True(t, ok)
	assert.Equal(t, `org.openhab.core.thing;version="4.0.0",org.openhab.core.thing.binding;uses:="org.openhab.core.thing"`, exports)

	_, ok = m.Get("Name")
	assert.False(t, ok, "per-entry sections are not part of the main section")
}

func TestParseManifestErrors(t *testing.T) {
	_, err := ParseManifest(strings.NewReader(" dangling\r\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "continuation")

	_, err = ParseManifest(strings.NewReader("no colon here\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing ':'")
}

func TestManifestFormat(t *testing.T) {
	assert.Equal(t, "Manifest-Version: 1.0\r\n\r\n", string(NewManifest().Format()))

	m := NewManifest()
	m.Set("Created-By", "ruleforge")
	assert.Equal(t, "Manifest-Version: 1.0\r\nCreated-By: ruleforge\r\n\r\n", string(m.Format()))
}

func TestManifestRoundTrip(t *testing.T) {
	m := NewManifest()
	m.Set("Bundle-SymbolicName", "org.example")

	parsed, err := ParseManifest(strings.NewReader(string(m.Format())))
	require.NoError(t, err)
	v, ok := parsed.Get("Bundle-SymbolicName")
	require.True(t, ok)
	assert.Equal(t, "org.example", v)
}
