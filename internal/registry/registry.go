package registry

import (
	"reflect"
	"sort"
	"sync"

	"github.com/roach88/ruleforge/internal/ir"
)

// Change is the outcome of replacing the registry state.
type Change struct {
	// Events are the host events describing the change, removals first.
	Events []ir.Event
	// ActionsChanged is true when the declared proxy actions differ. Such
	// a change has no host event of its own.
	ActionsChanged bool
}

// Registry holds the current host state.
//
// Thread-safety: All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	state State
}

// New creates a registry holding st. A nil st is an empty registry.
func New(st *State) *Registry {
	r := &Registry{}
	if st != nil {
		r.state = *st
	}
	return r
}

// Entities lists the entities of a category in declaration order.
func (r *Registry) Entities(cat ir.Category) []ir.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ir.Entity
	switch cat {
	case ir.CategoryDataPoint:
		for _, name := range r.state.Items {
			out = append(out, ir.Entity{Name: name})
		}
	case ir.CategoryDevice:
		for _, th := range r.state.Things {
			out = append(out, ir.Entity{Name: th.UID})
		}
	}
	return out
}

// Status returns the status of a device.
func (r *Registry) Status(uid string) (ir.Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, th := range r.state.Things {
		if th.UID == uid {
			return th.Status, true
		}
	}
	return "", false
}

// Proxies lists the proxy actions currently registered: those whose owning
// device exists and is initialized.
func (r *Registry) Proxies() []ir.ProxyAction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]ir.Status, len(r.state.Things))
	for _, th := range r.state.Things {
		status[th.UID] = th.Status
	}
	var out []ir.ProxyAction
	for _, p := range r.state.Actions {
		if s, ok := status[p.Owner]; ok && ir.IsInitialized(s) {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot returns a copy of the current state.
func (r *Registry) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return State{
		Items:   append([]string(nil), r.state.Items...),
		Things:  append([]Thing(nil), r.state.Things...),
		Actions: append([]ir.ProxyAction(nil), r.state.Actions...),
	}
}

// Replace swaps in next and describes the difference as host events:
//
//   - removed items and things: EntityRemoved; a removed thing first
//     reports a status change to REMOVED
//   - added items and things: EntityAdded; an added thing starts out
//     UNINITIALIZED and reports a status change to its declared status
//   - things whose status changed: StatusChanged
//
// Events of one kind are sorted by name.
func (r *Registry) Replace(next *State) Change {
	if next == nil {
		next = &State{}
	}
	r.mu.Lock()
	prev := r.state
	r.state = *next
	r.mu.Unlock()

	var ch Change
	oldItems, newItems := set(prev.Items), set(next.Items)
	for _, name := range sortedDiff(oldItems, newItems) {
		ch.Events = append(ch.Events, ir.EntityRemoved(ir.CategoryDataPoint, name))
	}

	oldThings, newThings := statuses(prev.Things), statuses(next.Things)
	for _, uid := range sortedDiff(keys(oldThings), keys(newThings)) {
		if old := oldThings[uid]; old != ir.StatusRemoved {
			ch.Events = append(ch.Events, ir.StatusChanged(uid, old, ir.StatusRemoved))
		}
		ch.Events = append(ch.Events, ir.EntityRemoved(ir.CategoryDevice, uid))
	}

	for _, name := range sortedDiff(newItems, oldItems) {
		ch.Events = append(ch.Events, ir.EntityAdded(ir.CategoryDataPoint, name))
	}
	for _, uid := range sortedDiff(keys(newThings), keys(oldThings)) {
		ch.Events = append(ch.Events, ir.EntityAdded(ir.CategoryDevice, uid))
		if s := newThings[uid]; s != ir.StatusUninitialized {
			ch.Events = append(ch.Events, ir.StatusChanged(uid, ir.StatusUninitialized, s))
		}
	}

	var kept []string
	for uid := range newThings {
		if old, ok := oldThings[uid]; ok && old != newThings[uid] {
			kept = append(kept, uid)
		}
	}
	sort.Strings(kept)
	for _, uid := range kept {
		ch.Events = append(ch.Events, ir.StatusChanged(uid, oldThings[uid], newThings[uid]))
	}

	ch.ActionsChanged = !reflect.DeepEqual(prev.Actions, next.Actions)
	return ch
}

func set(names []string) map[string]bool {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

func statuses(things []Thing) map[string]ir.Status {
	m := make(map[string]ir.Status, len(things))
	for _, th := range things {
		m[th.UID] = th.Status
	}
	return m
}

func keys(m map[string]ir.Status) map[string]bool {
	s := make(map[string]bool, len(m))
	for k := range m {
		s[k] = true
	}
	return s
}

// sortedDiff returns the members of a missing from b, sorted.
func sortedDiff(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if !b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
