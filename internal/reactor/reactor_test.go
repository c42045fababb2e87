package reactor

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/ruleforge/internal/ir"
	"github.com/roach88/ruleforge/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBuilder struct {
	mu       sync.Mutex
	triggers []string
	indexes  int
}

func (b *fakeBuilder) Rebuild(trigger string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.triggers = append(b.triggers, trigger)
	return nil
}

func (b *fakeBuilder) RebuildIndex() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexes++
	return nil
}

func (b *fakeBuilder) Triggers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.triggers...)
}

func (b *fakeBuilder) Indexes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexes
}

// panickingBuilder fails the way a crashing toolchain would.
type panickingBuilder struct{}

func (panickingBuilder) Rebuild(string) error { panic("toolchain blew up") }
func (panickingBuilder) RebuildIndex() error  { panic("index blew up") }

type fakeGenerator struct {
	actionsChanged bool
	err            error
	panics         bool
	calls          []string
}

func (g *fakeGenerator) GenerateDataPoints() (bool, error) {
	g.calls = append(g.calls, "data_points")
	return true, g.err
}

func (g *fakeGenerator) GenerateDevices() (bool, error) {
	g.calls = append(g.calls, "devices")
	return true, g.err
}

func (g *fakeGenerator) GenerateActions() (bool, error) {
	if g.panics {
		panic("boom")
	}
	g.calls = append(g.calls, "actions")
	return g.actionsChanged, g.err
}

type fixture struct {
	lib, staging string
	builder      *fakeBuilder
	gen          *fakeGenerator
	reactor      *Reactor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		lib:     t.TempDir(),
		staging: t.TempDir(),
		builder: &fakeBuilder{},
		gen:     &fakeGenerator{},
	}
	f.reactor = New(Options{
		LibDir:    f.lib,
		Staging:   f.staging,
		Builder:   f.builder,
		Generator: f.gen,
	})
	return f
}

func TestHandleFileEvent_Archive(t *testing.T) {
	f := newFixture(t)
	f.reactor.HandleFileEvent(OpCreate, filepath.Join(f.lib, "extra.jar"))
	f.reactor.HandleFileEvent(OpDelete, filepath.Join(f.lib, "extra.jar"))

	assert.Equal(t, 2, f.builder.Indexes())
	assert.Empty(t, f.builder.Triggers())
}

func TestHandleFileEvent_IgnoresOtherFiles(t *testing.T) {
	f := newFixture(t)
	path := testutil.WriteFile(t, filepath.Join(f.lib, "notes.txt"), "hello")
	f.reactor.HandleFileEvent(OpCreate, path)

	assert.Zero(t, f.builder.Indexes())
	assert.Empty(t, f.builder.Triggers())
}

func TestHandleFileEvent_SourceLifecycle(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteFile(t, filepath.Join(f.lib, "org", "example", "Util.java"), "class Util {}")
	staged := filepath.Join(f.staging, "org", "example", "Util.java")

	f.reactor.HandleFileEvent(OpCreate, src)
	assert.Equal(t, "class Util {}", testutil.ReadFile(t, staged))
	assert.Equal(t, []string{TriggerSource}, f.builder.Triggers())

	// Same content: nothing to do.
	f.reactor.HandleFileEvent(OpModify, src)
	assert.Len(t, f.builder.Triggers(), 1)

	testutil.WriteFile(t, src, "class Util { int x; }")
	f.reactor.HandleFileEvent(OpModify, src)
	assert.Equal(t, "class Util { int x; }", testutil.ReadFile(t, staged))
	assert.Len(t, f.builder.Triggers(), 2)

	require.NoError(t, os.Remove(src))
	f.reactor.HandleFileEvent(OpDelete, src)
	assert.NoFileExists(t, staged)
	assert.Len(t, f.builder.Triggers(), 3)

	// Staged copy already gone: nothing to do.
	f.reactor.HandleFileEvent(OpDelete, src)
	assert.Len(t, f.builder.Triggers(), 3)
}

func TestHandleFileEvent_ModifyOfUnstagedSourceCopies(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteFile(t, filepath.Join(f.lib, "Late.java"), "class Late {}")

	f.reactor.HandleFileEvent(OpModify, src)
	assert.Equal(t, "class Late {}", testutil.ReadFile(t, filepath.Join(f.staging, "Late.java")))
	assert.Equal(t, []string{TriggerSource}, f.builder.Triggers())
}

func TestHandleFileEvent_UnreadableSource(t *testing.T) {
	f := newFixture(t)
	f.reactor.HandleFileEvent(OpCreate, filepath.Join(f.lib, "Missing.java"))
	assert.Empty(t, f.builder.Triggers())
}

func TestHandleFileEvent_OutsideLibDir(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteFile(t, filepath.Join(t.TempDir(), "Stray.java"), "class Stray {}")
	f.reactor.HandleFileEvent(OpCreate, src)
	assert.Empty(t, f.builder.Triggers())
}

func TestCopyAll(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, filepath.Join(f.lib, "A.java"), "class A {}")
	testutil.WriteFile(t, filepath.Join(f.lib, "pkg", "sub", "B.java"), "package pkg.sub; class B {}")
	testutil.WriteFile(t, filepath.Join(f.lib, "lib.jar"), "not a source")

	n, err := f.reactor.CopyAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(f.staging, "A.java"))
	assert.FileExists(t, filepath.Join(f.staging, "pkg", "sub", "B.java"))
	assert.NoFileExists(t, filepath.Join(f.staging, "lib.jar"))
	assert.Empty(t, f.builder.Triggers())
}

func TestCopyAll_MissingLibDir(t *testing.T) {
	r := New(Options{LibDir: filepath.Join(t.TempDir(), "missing"), Staging: t.TempDir()})
	_, err := r.CopyAll()
	require.Error(t, err)
}

func TestReceive_StatusChanges(t *testing.T) {
	tests := []struct {
		name     string
		from, to ir.Status
		changed  bool
		want     []string
		gen      []string
	}{
		{"enters initialized", ir.StatusInitializing, ir.StatusOnline, true, []string{TriggerActions}, []string{"actions"}},
		{"leaves initialized", ir.StatusOffline, ir.StatusUninitialized, true, []string{TriggerActions}, []string{"actions"}},
		{"unchanged interfaces", ir.StatusInitializing, ir.StatusUnknown, false, nil, []string{"actions"}},
		{"within initialized", ir.StatusOnline, ir.StatusOffline, true, nil, nil},
		{"outside initialized", ir.StatusUninitialized, ir.StatusInitializing, true, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.gen.actionsChanged = tt.changed
			f.reactor.Receive(ir.StatusChanged("hue:bridge:1", tt.from, tt.to))
			assert.Equal(t, tt.want, f.builder.Triggers())
			assert.Equal(t, tt.gen, f.gen.calls)
		})
	}
}

func TestReceive_EntityEvents(t *testing.T) {
	f := newFixture(t)
	f.reactor.Receive(ir.EntityAdded(ir.CategoryDevice, "hue:bridge:1"))
	f.reactor.Receive(ir.EntityRemoved(ir.CategoryDataPoint, "Kitchen_Light"))

	assert.Equal(t, []string{"devices", "data_points"}, f.gen.calls)
	assert.Equal(t, []string{TriggerDevices, TriggerDataPoints}, f.builder.Triggers())
}

func TestReceive_GeneratorErrorSkipsRebuild(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errors.New("disk full")
	f.reactor.Receive(ir.EntityAdded(ir.CategoryDataPoint, "Kitchen_Light"))
	f.reactor.Receive(ir.StatusChanged("hue:bridge:1", ir.StatusInitializing, ir.StatusOnline))
	assert.Empty(t, f.builder.Triggers())
}

func TestReceive_RecoversPanic(t *testing.T) {
	f := newFixture(t)
	f.gen.panics = true
	assert.NotPanics(t, func() {
		f.reactor.Receive(ir.StatusChanged("hue:bridge:1", ir.StatusInitializing, ir.StatusOnline))
	})
	assert.Empty(t, f.builder.Triggers())
}

func TestHandleFileEvent_RecoversPanic(t *testing.T) {
	f := newFixture(t)
	f.reactor = New(Options{
		LibDir:    f.lib,
		Staging:   f.staging,
		Builder:   panickingBuilder{},
		Generator: f.gen,
	})
	src := testutil.WriteFile(t, filepath.Join(f.lib, "A.java"), "class A {}")

	assert.NotPanics(t, func() {
		f.reactor.HandleFileEvent(OpCreate, src)
	})
	assert.NotPanics(t, func() {
		f.reactor.HandleFileEvent(OpCreate, filepath.Join(f.lib, "extra.jar"))
	})
	assert.FileExists(t, filepath.Join(f.staging, "A.java"))
}

func TestSubscribedEventTypes(t *testing.T) {
	f := newFixture(t)
	assert.ElementsMatch(t,
		[]ir.EventType{ir.EventStatusChanged, ir.EventEntityAdded, ir.EventEntityRemoved},
		f.reactor.SubscribedEventTypes())
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "modify", OpModify.String())
	assert.Equal(t, "delete", OpDelete.String())
	assert.Equal(t, "op(9)", Op(9).String())
}
