package synth

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/ruleforge/internal/ir"
	"github.com/roach88/ruleforge/internal/testutil"
)

type classSet map[string]bool

func (s classSet) Has(name string) bool { return s[name] }

type writeLog struct {
	mu     sync.Mutex
	writes []string
}

func (w *writeLog) record(class string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, class)
}

func (w *writeLog) take() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.writes
	w.writes = nil
	return out
}

func newSynth(t *testing.T, host *testutil.StaticHost, cp ClassChecker) (*Synthesizer, *writeLog, string) {
	t.Helper()
	staging := t.TempDir()
	log := &writeLog{}
	s := New(Options{
		Staging:       staging,
		HelperPackage: helperPackage,
		ActionBase:    actionBase,
		Entities:      host,
		Proxies:       host,
		Classpath:     cp,
		OnWrite:       log.record,
	})
	return s, log, staging
}

func TestUnitPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("/stage", "org", "smarthomej", "automation", "javarule", "Items.java"),
		UnitPath("/stage", "org.smarthomej.automation.javarule.Items"))
	assert.Equal(t, filepath.Join("/stage", "Items.java"), UnitPath("/stage", "Items"))
}

func TestGenerateDataPoints_Idempotent(t *testing.T) {
	host := testutil.NewStaticHost().AddEntity(ir.CategoryDataPoint, "Kitchen_Light")
	s, log, staging := newSynth(t, host, nil)

	changed, err := s.GenerateDataPoints()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{helperPackage + ".Items"}, log.take())

	path := UnitPath(staging, helperPackage+".Items")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Contains(t, testutil.ReadFile(t, path), `public static final String Kitchen_Light = "Kitchen_Light";`)

	changed, err = s.GenerateDataPoints()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, log.take(), "unchanged unit must not be written")

	again, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())
}

func TestGenerate_ChangePropagatesOnlyToAffectedUnit(t *testing.T) {
	host := testutil.NewStaticHost().
		AddEntity(ir.CategoryDataPoint, "Kitchen_Light").
		AddEntity(ir.CategoryDevice, "hue:bridge:1").
		AddProxy(lightActions())
	s, log, _ := newSynth(t, host, nil)

	changed, err := s.GenerateAll()
	require.NoError(t, err)
	require.True(t, changed)
	log.take()

	host.AddEntity(ir.CategoryDataPoint, "Hall_Light")

	items, err := s.GenerateDataPoints()
	require.NoError(t, err)
	things, err := s.GenerateDevices()
	require.NoError(t, err)
	actions, err := s.GenerateActions()
	require.NoError(t, err)

	assert.True(t, items)
	assert.False(t, things)
	assert.False(t, actions)
	assert.Equal(t, []string{helperPackage + ".Items"}, log.take())
}

func TestGenerateDevices_Golden(t *testing.T) {
	host := testutil.NewStaticHost().
		AddEntity(ir.CategoryDevice, "zwave:device:node-5").
		AddEntity(ir.CategoryDevice, "hue:bridge:1")
	s, _, staging := newSynth(t, host, nil)

	_, err := s.GenerateDevices()
	require.NoError(t, err)
	newGolden(t).Assert(t, "things", []byte(testutil.ReadFile(t, UnitPath(staging, helperPackage+".Things"))))
}

func TestGenerateActions_InterfaceAndScopes(t *testing.T) {
	media := ir.ProxyAction{
		Class:    "org.example.media.MediaActions",
		Owner:    "sonos:zone:1",
		Scope:    "media",
		HasScope: true,
	}
	host := testutil.NewStaticHost().AddProxy(lightActions()).AddProxy(media)
	s, _, staging := newSynth(t, host, nil)

	changed, err := s.GenerateActions()
	require.NoError(t, err)
	assert.True(t, changed)

	newGolden(t).Assert(t, "light_actions",
		[]byte(testutil.ReadFile(t, UnitPath(staging, "org.example.lighting.LightActions"))))
	newGolden(t).Assert(t, "scopes",
		[]byte(testutil.ReadFile(t, UnitPath(staging, helperPackage+".Scopes"))))
}

func TestGenerateActions_SkipsClassesOnStandardClasspath(t *testing.T) {
	host := testutil.NewStaticHost().AddProxy(lightActions())
	s, log, staging := newSynth(t, host, classSet{"org.example.lighting.LightActions": true})

	_, err := s.GenerateActions()
	require.NoError(t, err)

	assert.Equal(t, []string{helperPackage + ".Scopes"}, log.take())
	assert.NoFileExists(t, UnitPath(staging, "org.example.lighting.LightActions"))
	assert.Contains(t, testutil.ReadFile(t, UnitPath(staging, helperPackage+".Scopes")),
		`public static final String LIGHTING = "lighting";`)
}

func TestGenerateActions_SkipsClassesWithoutScope(t *testing.T) {
	var logs bytes.Buffer
	host := testutil.NewStaticHost().AddProxy(ir.ProxyAction{Class: "org.example.NoScope", Owner: "x:y:z"})
	s := New(Options{
		Staging:       t.TempDir(),
		HelperPackage: helperPackage,
		ActionBase:    actionBase,
		Proxies:       host,
		Logger:        slog.New(slog.NewTextHandler(&logs, nil)),
	})

	_, err := s.GenerateActions()
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "org.example.NoScope")
	_, ok := s.Cache().Get("org.example.NoScope")
	assert.False(t, ok)
}

func TestGenerateActions_ProcessesEachClassOnce(t *testing.T) {
	second := lightActions()
	second.Owner = "hue:bridge:2"
	host := testutil.NewStaticHost().AddProxy(lightActions()).AddProxy(second)
	s, log, _ := newSynth(t, host, nil)

	_, err := s.GenerateActions()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"org.example.lighting.LightActions", helperPackage + ".Scopes"}, log.take())
}

func TestGenerate_WriteFailureIsRetried(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	require.NoError(t, os.WriteFile(staging, []byte("not a directory"), 0644))

	host := testutil.NewStaticHost().AddEntity(ir.CategoryDataPoint, "Kitchen_Light")
	s := New(Options{Staging: staging, HelperPackage: helperPackage, Entities: host})

	changed, err := s.GenerateDataPoints()
	require.Error(t, err)
	assert.False(t, changed)
	assert.Zero(t, s.Cache().Len())

	require.NoError(t, os.Remove(staging))
	changed, err = s.GenerateDataPoints()
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestCache_ResetForcesRewrite(t *testing.T) {
	host := testutil.NewStaticHost().AddEntity(ir.CategoryDataPoint, "Kitchen_Light")
	s, log, _ := newSynth(t, host, nil)

	_, err := s.GenerateDataPoints()
	require.NoError(t, err)
	s.Cache().Reset()

	changed, err := s.GenerateDataPoints()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, log.take(), 2)
}

func TestGenerateDataPoints_IdempotentProperty(t *testing.T) {
	staging := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z][A-Za-z0-9_]{0,12}`), 0, 10).Draw(rt, "names")
		host := testutil.NewStaticHost()
		for _, n := range names {
			host.AddEntity(ir.CategoryDataPoint, n)
		}
		s := New(Options{Staging: staging, HelperPackage: helperPackage, Entities: host})

		if _, err := s.GenerateDataPoints(); err != nil {
			rt.Fatalf("first generation: %v", err)
		}
		changed, err := s.GenerateDataPoints()
		if err != nil {
			rt.Fatalf("second generation: %v", err)
		}
		if changed {
			rt.Fatalf("second generation with unchanged entities reported a change")
		}
	})
}
