package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleforge/internal/compiler/compilertest"
	"github.com/roach88/ruleforge/internal/testutil"
)

const kitchenRegistry = `
items: ["Kitchen_Light"]

things: {
	"hue:bridge:1": status: "ONLINE"
}

actions: {
	"org.example.lighting.LightActions": {
		thing: "hue:bridge:1"
		scope: "lighting"
		methods: [{name: "turnOn", params: ["boolean"]}]
	}
}
`

// syncBuffer is a bytes.Buffer safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// workspace is a directory with a configuration file, a library
// directory and optionally a registry and a journal.
type workspace struct {
	dir    string
	config string
	lib    string
}

type workspaceOption func(t *testing.T, cfg map[string]any, dir string)

func withRegistry(src string) workspaceOption {
	return func(t *testing.T, cfg map[string]any, dir string) {
		testutil.WriteFile(t, filepath.Join(dir, "host.cue"), src)
		cfg["registry"] = "host.cue"
	}
}

func withJournal() workspaceOption {
	return func(t *testing.T, cfg map[string]any, dir string) {
		cfg["journal"] = "journal.db"
	}
}

func withSetting(key string, value any) workspaceOption {
	return func(t *testing.T, cfg map[string]any, dir string) {
		cfg[key] = value
	}
}

func newWorkspace(t *testing.T, opts ...workspaceOption) *workspace {
	t.Helper()
	dir := t.TempDir()
	cfg := map[string]any{"lib_dir": "lib"}
	for _, opt := range opts {
		opt(t, cfg, dir)
	}

	// JSON is valid YAML.
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "ruleforge.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	lib := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(lib, 0755))
	return &workspace{dir: dir, config: path, lib: lib}
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

func (w *workspace) libFile(t *testing.T, name, content string) string {
	t.Helper()
	return testutil.WriteFile(t, filepath.Join(w.lib, name), content)
}

func (w *workspace) rootOptions(format string) *RootOptions {
	return &RootOptions{
		Format:    format,
		Config:    w.config,
		Toolchain: &compilertest.Toolchain{},
	}
}

// execute runs cmd with args and returns stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decode parses a JSON CLI response, decoding its data into data.
func decode(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &raw), out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}
