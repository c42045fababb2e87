package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/ruleforge/internal/archive"
	"github.com/roach88/ruleforge/internal/baseline"
	"github.com/roach88/ruleforge/internal/compiler"
	"github.com/roach88/ruleforge/internal/config"
	"github.com/roach88/ruleforge/internal/filemgr"
	"github.com/roach88/ruleforge/internal/journal"
	"github.com/roach88/ruleforge/internal/loader"
	"github.com/roach88/ruleforge/internal/metrics"
	"github.com/roach88/ruleforge/internal/reactor"
	"github.com/roach88/ruleforge/internal/synth"
)

// Triggers recorded for rebuilds the engine starts itself. Rebuilds
// requested by the reactor carry the reactor's triggers.
const (
	TriggerActivation = "activation"
	TriggerRefresh    = "refresh"
	TriggerManual     = "manual"
)

// ErrNotActive is returned by operations that need an activated engine.
var ErrNotActive = errors.New("engine not active")

// Host is the live host state the synthesizer renders.
type Host interface {
	synth.EntityLister
	synth.ProxyLister
}

// Options configures an Engine.
type Options struct {
	Config config.Config
	Host   Host

	// Modules lists the host modules for the dependency archive. Nil
	// means the archives in Config.ModuleDir, or none when that is empty.
	Modules baseline.ModuleRegistry
	// Toolchain compiles the staged sources. Nil means javac at
	// Config.Javac.
	Toolchain compiler.Toolchain
	// Parent resolves host classes before the library archives. Nil means
	// the dependency archive and the standard classpath archives.
	Parent loader.Resolver

	// Journal records every rebuild attempt. Optional.
	Journal *journal.Journal
	// Metrics is optional.
	Metrics *metrics.Metrics

	IDs    IDGenerator
	Now    func() time.Time
	Logger *slog.Logger
}

// Engine keeps the published helper archive in step with the host state
// and the user sources of the library directory.
//
// Thread-safety: all methods are safe for concurrent use. Rebuilds are
// serialized; the overlay lock additionally serializes them with index
// rebuilds.
type Engine struct {
	opts   Options
	cfg    config.Config
	logger *slog.Logger
	ids    IDGenerator
	now    func() time.Time

	state atomic.Int32

	// lifecycle guards activation and deactivation.
	lifecycle sync.Mutex
	// build serializes rebuilds including their journal entries.
	build sync.Mutex

	clock    *Clock
	staging  string
	standard *filemgr.Standard
	overlay  *filemgr.Overlay
	synth    *synth.Synthesizer
	reactor  *reactor.Reactor
	orch     *compiler.Orchestrator
	parent   atomic.Pointer[loader.ArchiveLoader]
	last     atomic.Pointer[journal.Build]
}

// New creates an engine. Nothing touches the disk before Activate.
func New(opts Options) *Engine {
	e := &Engine{
		opts:   opts,
		cfg:    opts.Config,
		logger: opts.Logger,
		ids:    opts.IDs,
		now:    opts.Now,
		clock:  NewClock(),
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.ids == nil {
		e.ids = UUIDv7Generator{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	if prev != s {
		e.logger.Debug("engine state changed", "from", prev.String(), "to", s.String())
	}
}

// Activate prepares the staging directory and publishes the first helper
// archive.
//
// A library directory that cannot be created, read or written is an
// error and leaves the engine uninitialized. A failed first rebuild is
// not: the engine is Ready and the failure is logged and recorded like any
// other.
func (e *Engine) Activate(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.State() != StateUninitialized {
		return fmt.Errorf("activate: engine is %s", e.State())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkLibDir(e.cfg.LibDir); err != nil {
		e.logger.Warn("library directory unusable", "path", e.cfg.LibDir, "error", err)
		return err
	}
	if err := e.resumeSequence(ctx); err != nil {
		return err
	}
	// No writer is active before activation; leftovers come from a crash.
	removed, err := archive.RemoveStale(e.cfg.LibDir)
	for _, path := range removed {
		e.logger.Info("removed stale archive temp file", "path", path)
	}
	if err != nil {
		e.logger.Warn("stale archive cleanup incomplete", "path", e.cfg.LibDir, "error", err)
	}

	staging, err := os.MkdirTemp("", "ruleforge-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	e.staging = staging
	e.wire()

	if err := ctx.Err(); err != nil {
		e.cleanup()
		return err
	}

	res, err := e.buildBaseline()
	if err != nil {
		e.logger.Warn("dependency archive not built", "path", e.cfg.DependencyArchivePath(), "error", err)
	} else {
		e.logger.Info("dependency archive built",
			"path", e.cfg.DependencyArchivePath(),
			"modules", len(res.Modules),
			"classes", res.Classes)
	}
	e.setState(StateBaselineBuilt)

	if err := e.RebuildIndex(); err != nil {
		e.logger.Warn("initial index failed", "path", e.cfg.LibDir, "error", err)
	}
	e.setState(StateIndexed)

	if _, err := e.synth.GenerateAll(); err != nil {
		e.logger.Warn("initial synthesis incomplete", "error", err)
	}
	if _, err := e.reactor.CopyAll(); err != nil {
		e.logger.Warn("user sources not copied", "path", e.cfg.LibDir, "error", err)
	}

	if err := ctx.Err(); err != nil {
		e.cleanup()
		return err
	}

	_ = e.Rebuild(TriggerActivation)
	e.logger.Info("engine activated", "lib_dir", e.cfg.LibDir, "staging", e.staging)
	return nil
}

// wire builds the components that live for one activation.
func (e *Engine) wire() {
	e.standard = filemgr.NewStandard(e.cfg.Classpath, e.staging, e.logger)

	parent := e.opts.Parent
	if parent == nil {
		parent = loader.ResolverFunc(e.resolveParent)
	}
	e.overlay = filemgr.NewOverlay(filemgr.OverlayOptions{
		Base:              e.standard,
		LibDir:            e.cfg.LibDir,
		Staging:           e.staging,
		DependencyArchive: e.cfg.DependencyArchivePath(),
		Parent:            parent,
		Logger:            e.logger,
	})

	e.synth = synth.New(synth.Options{
		Staging:       e.staging,
		HelperPackage: e.cfg.HelperPackage,
		ActionBase:    e.cfg.ActionBase,
		Entities:      e.opts.Host,
		Proxies:       e.opts.Host,
		Classpath:     e.standard,
		OnWrite:       e.opts.Metrics.RecordUnitWrite,
		Logger:        e.logger,
	})

	e.reactor = reactor.New(reactor.Options{
		LibDir:    e.cfg.LibDir,
		Staging:   e.staging,
		Builder:   e,
		Generator: e.synth,
		Logger:    e.logger,
	})

	tc := e.opts.Toolchain
	if tc == nil {
		tc = &compiler.Javac{Path: e.cfg.Javac, Logger: e.logger}
	}
	e.orch = &compiler.Orchestrator{
		Overlay:  e.overlay,
		Compiler: compiler.New(tc, e.logger),
		Target:   e.cfg.HelperArchivePath(),
		Logger:   e.logger,
	}
}

func (e *Engine) buildBaseline() (baseline.Result, error) {
	modules := e.opts.Modules
	if modules == nil {
		if e.cfg.ModuleDir != "" {
			modules = baseline.NewDirRegistry(e.cfg.ModuleDir, e.logger)
		} else {
			modules = noModules{}
		}
	}
	b := &baseline.Builder{
		Registry: modules,
		Allowed:  baseline.AllowList(baseline.DefaultModules, e.cfg.AdditionalModules),
		Lock:     e.overlay,
		Logger:   e.logger,
	}
	res, err := b.Build(e.cfg.DependencyArchivePath())

	// The default parent sees the dependency archive as it is now; it is
	// written once per activation. A failed build leaves the previous one,
	// which the overlay indexes too.
	e.parent.Store(loader.New(nil, 0, parentArchives(e.cfg, e.standard, fileExists(e.cfg.DependencyArchivePath())), e.logger))
	return res, err
}

// parentArchives lists what the default parent loader reads: the
// dependency archive when it exists, then the archives of the standard
// classpath.
func parentArchives(cfg config.Config, std *filemgr.Standard, withDependency bool) []string {
	var archives []string
	if withDependency {
		archives = append(archives, cfg.DependencyArchivePath())
	}
	for _, entry := range std.ClassPath() {
		if strings.HasSuffix(entry, filemgr.ArchiveSuffix) {
			archives = append(archives, entry)
		}
	}
	return archives
}

func (e *Engine) resolveParent(name string) ([]byte, error) {
	p := e.parent.Load()
	if p == nil {
		return nil, &loader.ClassNotFoundError{Name: name}
	}
	return p.Resolve(name)
}

func (e *Engine) resumeSequence(ctx context.Context) error {
	if e.opts.Journal == nil {
		return nil
	}
	last, err := e.opts.Journal.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("resume build sequence: %w", err)
	}
	e.clock = NewClockAt(last)
	return nil
}

// Rebuild compiles the staged sources and republishes the helper archive,
// then re-indexes the library directory. It implements reactor.Builder.
//
// A failed rebuild is logged here, once, at error level with the compiler
// diagnostics, and recorded in the journal. The error is also returned
// for callers that report it themselves.
func (e *Engine) Rebuild(trigger string) error {
	if e.State() < StateIndexed {
		return ErrNotActive
	}
	e.build.Lock()
	defer e.build.Unlock()
	// Deactivate may have run while waiting for the lock.
	if e.State() < StateIndexed {
		return ErrNotActive
	}

	e.setState(StateRebuilding)
	defer e.setState(StateReady)

	id := e.ids.Generate()
	seq := e.clock.Next()
	started := e.now()
	res, err := e.orch.Rebuild()
	duration := e.now().Sub(started)

	rec := journal.Build{
		ID:       id,
		Seq:      seq,
		Trigger:  trigger,
		Started:  started,
		Duration: duration,
		Success:  err == nil,
		Sources:  res.Sources,
		Classes:  res.Classes,
	}
	if err != nil {
		rec.Diagnostics = err.Error()
		e.logger.Error("helper archive rebuild failed",
			"trigger", trigger,
			"build_id", id,
			"seq", seq,
			"error", err)
	} else {
		e.logger.Info("helper archive rebuilt",
			"trigger", trigger,
			"build_id", id,
			"seq", seq,
			"sources", res.Sources,
			"classes", res.Classes,
			"duration", duration)
	}
	e.opts.Metrics.RecordRebuild(trigger, err == nil, duration, res.Classes)
	e.last.Store(&rec)
	e.record(rec)

	if err != nil {
		return err
	}
	if ierr := e.RebuildIndex(); ierr != nil {
		e.logger.Warn("re-index after rebuild failed", "path", e.cfg.LibDir, "error", ierr)
	}
	return nil
}

func (e *Engine) record(b journal.Build) {
	if e.opts.Journal == nil {
		return
	}
	if err := e.opts.Journal.Record(context.Background(), b); err != nil {
		e.logger.Warn("journal record failed", "build_id", b.ID, "error", err)
	}
}

// LastBuild returns the most recent rebuild attempt, false when none ran
// yet.
func (e *Engine) LastBuild() (journal.Build, bool) {
	b := e.last.Load()
	if b == nil {
		return journal.Build{}, false
	}
	return *b, true
}

// RebuildIndex re-reads the library directory and publishes the next
// classpath generation. It implements reactor.Builder.
func (e *Engine) RebuildIndex() error {
	if e.overlay == nil || e.State() == StateUninitialized {
		return ErrNotActive
	}
	snap, err := e.overlay.RebuildIndex()
	if err != nil {
		return err
	}
	e.opts.Metrics.SetIndexGeneration(snap.Generation)
	e.logger.Debug("classpath indexed",
		"generation", snap.Generation,
		"archives", len(snap.Archives),
		"packages", len(snap.Packages))
	return nil
}

// Refresh regenerates every synthesized unit and rebuilds when any of them
// changed. It reports whether a rebuild ran.
func (e *Engine) Refresh() (bool, error) {
	if e.State() < StateIndexed {
		return false, ErrNotActive
	}
	changed, err := e.synth.GenerateAll()
	if err != nil {
		e.logger.Warn("refresh synthesis incomplete", "error", err)
	}
	if !changed {
		e.logger.Debug("refresh found no changes")
		return false, nil
	}
	return true, e.Rebuild(TriggerRefresh)
}

// Deactivate removes the staging directory and forgets every emitted
// unit. The published archives stay in the library directory.
func (e *Engine) Deactivate() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.State() == StateUninitialized && e.staging == "" {
		return
	}
	e.build.Lock()
	defer e.build.Unlock()

	e.cleanup()
	e.logger.Info("engine deactivated", "lib_dir", e.cfg.LibDir)
}

func (e *Engine) cleanup() {
	if e.synth != nil {
		e.synth.Cache().Reset()
	}
	if e.staging != "" {
		if err := os.RemoveAll(e.staging); err != nil {
			e.logger.Warn("remove staging dir failed", "path", e.staging, "error", err)
		}
	}
	e.staging = ""
	e.parent.Store(nil)
	e.setState(StateUninitialized)
}

// Reactor returns the activation's file and host event handler, nil
// before Activate.
func (e *Engine) Reactor() *reactor.Reactor {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	return e.reactor
}

// Overlay returns the activation's classpath overlay, nil before Activate.
func (e *Engine) Overlay() *filemgr.Overlay {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	return e.overlay
}

// Staging returns the staging directory, empty when not active.
func (e *Engine) Staging() string {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	return e.staging
}

// Config returns the engine configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// checkLibDir creates dir if needed and verifies it can be read and
// written.
func checkLibDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create library dir: %w", err)
	}
	if _, err := os.ReadDir(dir); err != nil {
		return fmt.Errorf("library dir not readable: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".ruleforge-probe-*")
	if err != nil {
		return fmt.Errorf("library dir not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// noModules is the module registry of a host without modules.
type noModules struct{}

func (noModules) Modules() ([]baseline.Module, error) { return nil, nil }
