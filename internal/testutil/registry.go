package testutil

import (
	"sync"

	"github.com/roach88/ruleforge/internal/ir"
)

// StaticHost is an in-memory host registry for tests. It satisfies the
// entity and proxy listing contracts consumed by the synthesizer.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StaticHost struct {
	mu       sync.Mutex
	entities map[ir.Category][]ir.Entity
	proxies  []ir.ProxyAction
}

// NewStaticHost creates an empty host.
func NewStaticHost() *StaticHost {
	return &StaticHost{entities: make(map[ir.Category][]ir.Entity)}
}

// AddEntity registers an entity of the given category.
func (h *StaticHost) AddEntity(cat ir.Category, name string) *StaticHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entities[cat] = append(h.entities[cat], ir.Entity{Name: name})
	return h
}

// RemoveEntity drops every entity of the given category with that name.
func (h *StaticHost) RemoveEntity(cat ir.Category, name string) *StaticHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.entities[cat][:0]
	for _, e := range h.entities[cat] {
		if e.Name != name {
			kept = append(kept, e)
		}
	}
	h.entities[cat] = kept
	return h
}

// AddProxy registers a proxy action.
func (h *StaticHost) AddProxy(p ir.ProxyAction) *StaticHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.proxies = append(h.proxies, p)
	return h
}

// SetProxies replaces the registered proxy actions.
func (h *StaticHost) SetProxies(ps ...ir.ProxyAction) *StaticHost {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.proxies = append([]ir.ProxyAction(nil), ps...)
	return h
}

// Entities returns a copy of the entities of a category.
func (h *StaticHost) Entities(cat ir.Category) []ir.Entity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ir.Entity(nil), h.entities[cat]...)
}

// Proxies returns a copy of the registered proxy actions.
func (h *StaticHost) Proxies() []ir.ProxyAction {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ir.ProxyAction(nil), h.proxies...)
}

// LightActions is the proxy action used throughout the tests: one annotated
// turnOn(boolean) method in scope "lighting", owned by hue:bridge:1.
func LightActions() ir.ProxyAction {
	return ir.ProxyAction{
		Class:    "org.example.lighting.LightActions",
		Owner:    "hue:bridge:1",
		Scope:    "lighting",
		HasScope: true,
		Methods: []ir.ActionMethod{
			{
				Name:      "turnOn",
				Annotated: true,
				Params:    []ir.TypeRef{{Name: "boolean"}},
				Returns:   ir.TypeRef{Name: "void"},
			},
		},
	}
}
