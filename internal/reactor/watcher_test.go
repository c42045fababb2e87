package reactor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ruleforge/internal/testutil"
)

type fileEvent struct {
	op   Op
	path string
}

type recordingHandler struct {
	mu     sync.Mutex
	events []fileEvent
}

func (h *recordingHandler) HandleFileEvent(op Op, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, fileEvent{op, path})
}

func (h *recordingHandler) saw(op Op, path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ev := range h.events {
		if ev.op == op && ev.path == path {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, dir string, h FileHandler) {
	t.Helper()
	w, err := NewWatcher(dir, h, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestWatcher_ReportsFileEvents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "existing"), 0755))
	h := &recordingHandler{}
	startWatcher(t, dir, h)

	top := testutil.WriteFile(t, filepath.Join(dir, "A.java"), "class A {}")
	require.Eventually(t, func() bool { return h.saw(OpCreate, top) }, 5*time.Second, 10*time.Millisecond)

	nested := testutil.WriteFile(t, filepath.Join(dir, "existing", "B.java"), "class B {}")
	require.Eventually(t, func() bool { return h.saw(OpCreate, nested) }, 5*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(top, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.WriteString("// more")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Eventually(t, func() bool { return h.saw(OpModify, top) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(top))
	require.Eventually(t, func() bool { return h.saw(OpDelete, top) }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	startWatcher(t, dir, h)

	sub := filepath.Join(dir, "late")
	require.NoError(t, os.Mkdir(sub, 0755))
	first := testutil.WriteFile(t, filepath.Join(sub, "C.java"), "class C {}")

	// The file may be reported by the directory scan or by the new watch.
	require.Eventually(t, func() bool { return h.saw(OpCreate, first) }, 5*time.Second, 10*time.Millisecond)

	second := filepath.Join(sub, "D.java")
	require.Eventually(t, func() bool {
		testutil.WriteFile(t, second, "class D {}")
		return h.saw(OpCreate, second) || h.saw(OpModify, second)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), &recordingHandler{}, nil)
	require.Error(t, err)
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), &recordingHandler{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestOpOf(t *testing.T) {
	tests := []struct {
		name string
		in   fsnotify.Op
		want Op
		ok   bool
	}{
		{"create", fsnotify.Create, OpCreate, true},
		{"write", fsnotify.Write, OpModify, true},
		{"remove", fsnotify.Remove, OpDelete, true},
		{"rename", fsnotify.Rename, OpDelete, true},
		{"chmod", fsnotify.Chmod, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := opOf(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFileWatcher_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, filepath.Join(dir, "host.cue"), `items: []`)

	var calls atomic.Int32
	w, err := NewFileWatcher(path, 200*time.Millisecond, func() { calls.Add(1) }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	for i := 0; i < 5; i++ {
		testutil.WriteFile(t, path, `items: ["Kitchen_Light"]`)
	}
	testutil.WriteFile(t, filepath.Join(dir, "other.cue"), `x: 1`)

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFileWatcher_RecoversPanic(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, filepath.Join(dir, "host.cue"), `items: []`)

	var calls atomic.Int32
	w, err := NewFileWatcher(path, 10*time.Millisecond, func() {
		calls.Add(1)
		panic("bad reload")
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	testutil.WriteFile(t, path, `items: ["A"]`)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
