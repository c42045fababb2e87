package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleforge/internal/testutil"
)

// inspectWorkspace has a host archive on the standard classpath and a
// user archive in the library directory that shadows one host class.
func inspectWorkspace(t *testing.T) (*workspace, string, string) {
	t.Helper()
	hostDir := t.TempDir()
	hostJar := testutil.WriteJar(t, filepath.Join(hostDir, "host.jar"), map[string]string{
		"org/example/rules/Shared.class": "host",
	})
	ws := newWorkspace(t, withSetting("classpath", []string{hostJar}))
	rulesJar := testutil.WriteJar(t, filepath.Join(ws.lib, "rules.jar"), map[string]string{
		"org/example/rules/MyRule.class":   "rule",
		"org/example/rules/Shared.class":   "lib",
		"org/example/rules/sub/Deep.class": "deep",
	})
	return ws, hostJar, rulesJar
}

func unitNames(l UnitList) []string {
	names := make([]string, len(l.Units))
	for i, u := range l.Units {
		names[i] = u.Name
	}
	return names
}

func TestList_HostUnitsShadowLibraryUnits(t *testing.T) {
	ws, hostJar, rulesJar := inspectWorkspace(t)

	out, stderr, err := execute(t, NewListCommand(ws.rootOptions("json")), "org.example.rules")
	require.NoError(t, err, stderr)

	var l UnitList
	decode(t, out, &l)
	assert.Equal(t, "org.example.rules", l.Package)
	assert.Equal(t, uint64(1), l.Generation)
	require.Len(t, l.Units, 2)
	assert.Equal(t, Unit{
		Name:     "org.example.rules.Shared",
		Kind:     "class",
		Location: hostJar + "!/org/example/rules/Shared.class",
	}, l.Units[0])
	assert.Equal(t, Unit{
		Name:     "org.example.rules.MyRule",
		Kind:     "class",
		Location: rulesJar + "!/org/example/rules/MyRule.class",
	}, l.Units[1])
}

func TestList_Recurse(t *testing.T) {
	ws, _, _ := inspectWorkspace(t)

	out, _, err := execute(t, NewListCommand(ws.rootOptions("json")), "org.example", "--recurse")
	require.NoError(t, err)

	var l UnitList
	decode(t, out, &l)
	assert.ElementsMatch(t, []string{
		"org.example.rules.Shared",
		"org.example.rules.MyRule",
		"org.example.rules.sub.Deep",
	}, unitNames(l))
}

func TestList_TextOutput(t *testing.T) {
	ws, _, _ := inspectWorkspace(t)

	out, _, err := execute(t, NewListCommand(ws.rootOptions("text")), "org.example.rules.sub")
	require.NoError(t, err)
	assert.Contains(t, out, "org.example.rules.sub (generation 1, 1 units)")
	assert.Contains(t, out, "org.example.rules.sub.Deep")
}

func TestList_InvalidKind(t *testing.T) {
	ws, _, _ := inspectWorkspace(t)

	_, _, err := execute(t, NewListCommand(ws.rootOptions("text")), "--kind", "jar")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid kind "jar"`)
}

func TestResolve(t *testing.T) {
	ws, _, rulesJar := inspectWorkspace(t)

	t.Run("host wins", func(t *testing.T) {
		out, _, err := execute(t, NewResolveCommand(ws.rootOptions("json")), "org.example.rules.Shared")
		require.NoError(t, err)

		var r Resolution
		decode(t, out, &r)
		assert.Equal(t, Resolution{Class: "org.example.rules.Shared", Size: len("host")}, r)
	})

	t.Run("library archive", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "MyRule.class")
		out, _, err := execute(t, NewResolveCommand(ws.rootOptions("text")), "org.example.rules.MyRule", "-o", target)
		require.NoError(t, err)
		assert.Contains(t, out, "org.example.rules.MyRule: 4 bytes from "+rulesJar)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "rule", string(data))
	})

	t.Run("not found", func(t *testing.T) {
		out, _, err := execute(t, NewResolveCommand(ws.rootOptions("json")), "org.example.Missing")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		resp := decode(t, out, nil)
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeClassNotFound, resp.Error.Code)
	})
}

func TestExports(t *testing.T) {
	modules := t.TempDir()
	testutil.WriteModuleJar(t, filepath.Join(modules, "core.jar"),
		map[string]string{
			"Bundle-SymbolicName": "org.openhab.core; singleton:=true",
			"Export-Package":      `org.openhab.core.items;version="4.0.0",org.openhab.core.events`,
		},
		map[string]string{"org/openhab/core/items/Item.class": "x"})
	testutil.WriteModuleJar(t, filepath.Join(modules, "other.jar"),
		map[string]string{"Bundle-SymbolicName": "org.example.unlisted"},
		map[string]string{"org/example/unlisted/Thing.class": "x"})
	ws := newWorkspace(t, withSetting("module_dir", modules))

	out, stderr, err := execute(t, NewExportsCommand(ws.rootOptions("json")))
	require.NoError(t, err, stderr)

	var report ExportsReport
	decode(t, out, &report)
	assert.Equal(t, []ModuleExports{
		{Name: "org.example.unlisted", Allowed: false, Exports: []string{}},
		{Name: "org.openhab.core", Allowed: true, Exports: []string{"org/openhab/core/items", "org/openhab/core/events"}},
	}, report.Modules)
	assert.Contains(t, report.Missing, "org.openhab.core.thing")
	assert.NotContains(t, report.Missing, "org.openhab.core")

	out, _, err = execute(t, NewExportsCommand(ws.rootOptions("text")))
	require.NoError(t, err)
	assert.Contains(t, out, "* org.openhab.core (2 packages)")
	assert.Contains(t, out, "  org.example.unlisted (0 packages)")
}

func TestExports_RequiresModuleDir(t *testing.T) {
	ws := newWorkspace(t)

	_, _, err := execute(t, NewExportsCommand(ws.rootOptions("text")))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no module_dir configured")
}
