package synth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/ruleforge/internal/ir"
)

// SourceSuffix is the file suffix of generated and user source units.
const SourceSuffix = ".java"

// Simple names of the constant holder units.
const (
	ItemsClass  = "Items"
	ThingsClass = "Things"
	ScopesClass = "Scopes"
)

// EntityLister lists the named entities of one category.
type EntityLister interface {
	Entities(cat ir.Category) []ir.Entity
}

// ProxyLister lists the proxy action implementations currently registered.
type ProxyLister interface {
	Proxies() []ir.ProxyAction
}

// ClassChecker reports whether a class is resolvable on the standard
// classpath.
type ClassChecker interface {
	Has(binaryName string) bool
}

// Options configures a Synthesizer.
type Options struct {
	// Staging is the directory units are written to.
	Staging string
	// HelperPackage is the package of Items, Things and Scopes.
	HelperPackage string
	// ActionBase is the fully-qualified base interface of action interfaces.
	ActionBase string

	Entities  EntityLister
	Proxies   ProxyLister
	Classpath ClassChecker

	// Cache holds previously emitted text. Nil means a fresh cache.
	Cache *Cache
	// OnWrite is called with the class name of every unit written.
	OnWrite func(class string)
	Logger  *slog.Logger
}

// Synthesizer renders the generated units and writes the changed ones.
//
// Thread-safety: the Generate methods may be called concurrently. Writes
// are serialized so that the file on disk always matches the cache.
type Synthesizer struct {
	mu     sync.Mutex
	opts   Options
	cache  *Cache
	logger *slog.Logger
}

// New creates a Synthesizer.
func New(opts Options) *Synthesizer {
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{opts: opts, cache: cache, logger: logger}
}

// Cache returns the emitted-text cache.
func (s *Synthesizer) Cache() *Cache {
	return s.cache
}

// UnitPath returns where the unit for a fully-qualified class name lives
// below staging: one directory per package segment, then <Simple>.java.
func UnitPath(staging, class string) string {
	parts := strings.Split(class, ".")
	parts[len(parts)-1] += SourceSuffix
	return filepath.Join(append([]string{staging}, parts...)...)
}

// GenerateDataPoints regenerates the Items unit.
func (s *Synthesizer) GenerateDataPoints() (bool, error) {
	consts := s.entityConstants(ir.CategoryDataPoint, DataPointConstant)
	return s.emit(s.helperClass(ItemsClass), RenderConstants(s.opts.HelperPackage, ItemsClass, consts))
}

// GenerateDevices regenerates the Things unit.
func (s *Synthesizer) GenerateDevices() (bool, error) {
	consts := s.entityConstants(ir.CategoryDevice, DeviceConstant)
	return s.emit(s.helperClass(ThingsClass), RenderConstants(s.opts.HelperPackage, ThingsClass, consts))
}

// GenerateActions regenerates one interface per proxy action class and the
// Scopes unit.
//
// Each class is processed once even when several devices registered it.
// Classes without a scope are skipped with a warning. Classes resolvable on
// the standard classpath get no interface, but their scope is still
// recorded. Write failures of single units are collected and returned
// after the remaining units have been processed.
func (s *Synthesizer) GenerateActions() (bool, error) {
	var (
		changed bool
		errs    []error
		seen    = make(map[string]bool)
		scopes  = make(map[string]bool)
	)

	for _, proxy := range s.proxies() {
		if seen[proxy.Class] {
			continue
		}
		seen[proxy.Class] = true

		if !proxy.HasScope {
			s.logger.Warn("proxy action class has no scope, ignoring", "class", proxy.Class)
			continue
		}
		scopes[proxy.Scope] = true

		if s.opts.Classpath != nil && s.opts.Classpath.Has(proxy.Class) {
			s.logger.Debug("proxy action class is on the standard classpath, skipping", "class", proxy.Class)
			continue
		}

		text := RenderInterface(proxy.Package(), proxy.SimpleName(), s.opts.ActionBase, proxy.AnnotatedMethods())
		c, err := s.emit(proxy.Class, text)
		if err != nil {
			errs = append(errs, err)
		}
		changed = changed || c
	}

	c, err := s.emit(s.helperClass(ScopesClass), RenderConstants(s.opts.HelperPackage, ScopesClass, scopeConstants(scopes)))
	if err != nil {
		errs = append(errs, err)
	}
	changed = changed || c
	return changed, errors.Join(errs...)
}

// GenerateAll regenerates every unit. It reports whether any unit changed.
func (s *Synthesizer) GenerateAll() (bool, error) {
	var errs []error
	changed := false
	for _, gen := range []func() (bool, error){s.GenerateDataPoints, s.GenerateDevices, s.GenerateActions} {
		c, err := gen()
		if err != nil {
			errs = append(errs, err)
		}
		changed = changed || c
	}
	return changed, errors.Join(errs...)
}

func (s *Synthesizer) helperClass(simple string) string {
	if s.opts.HelperPackage == "" {
		return simple
	}
	return s.opts.HelperPackage + "." + simple
}

func (s *Synthesizer) proxies() []ir.ProxyAction {
	if s.opts.Proxies == nil {
		return nil
	}
	return s.opts.Proxies.Proxies()
}

// entityConstants returns one constant per entity, sorted by constant name.
// Entities whose constant name collides with an earlier one are dropped
// with a warning, since the unit would not compile otherwise.
func (s *Synthesizer) entityConstants(cat ir.Category, nameOf func(string) string) []Constant {
	if s.opts.Entities == nil {
		return nil
	}
	entities := s.opts.Entities.Entities(cat)
	consts := make([]Constant, 0, len(entities))
	for _, e := range entities {
		value := norm.NFC.String(e.Name)
		consts = append(consts, Constant{Name: nameOf(value), Value: value})
	}
	sort.SliceStable(consts, func(i, j int) bool {
		if consts[i].Name != consts[j].Name {
			return consts[i].Name < consts[j].Name
		}
		return consts[i].Value < consts[j].Value
	})

	out := consts[:0]
	for i, c := range consts {
		if i > 0 && c.Name == out[len(out)-1].Name {
			if c.Value != out[len(out)-1].Value {
				s.logger.Warn("entity constant name collision, ignoring entity",
					"category", string(cat), "name", c.Value, "constant", c.Name)
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

func scopeConstants(scopes map[string]bool) []Constant {
	names := make([]string, 0, len(scopes))
	for scope := range scopes {
		names = append(names, scope)
	}
	sort.Strings(names)

	consts := make([]Constant, 0, len(names))
	used := make(map[string]bool)
	for _, scope := range names {
		name := ScopeConstant(scope)
		if used[name] {
			continue
		}
		used[name] = true
		consts = append(consts, Constant{Name: name, Value: scope})
	}
	return consts
}

// emit writes text as the unit for class unless it equals the text last
// emitted for that class.
func (s *Synthesizer) emit(class, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := UnitPath(s.opts.Staging, class)
	if !s.cache.Swap(class, text) {
		s.logger.Debug("generated unit unchanged", "unit", class)
		return false, nil
	}

	if err := writeUnit(path, text); err != nil {
		s.cache.Forget(class)
		s.logger.Warn("write generated unit failed", "unit", class, "path", path, "error", err)
		return false, fmt.Errorf("write unit %s: %w", class, err)
	}
	s.logger.Debug("wrote generated unit", "unit", class, "path", path)
	if s.opts.OnWrite != nil {
		s.opts.OnWrite(class)
	}
	return true, nil
}

func writeUnit(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0644)
}
