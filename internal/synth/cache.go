package synth

import "sync"

// Cache remembers the text last emitted for each generated unit.
//
// A Cache lives as long as one engine activation; Reset drops everything
// when the engine deactivates so that the next activation writes every
// unit again.
//
// Thread-safety: All methods are safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	texts map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{texts: make(map[string]string)}
}

// Swap stores text for id and reports whether it differs from the text
// stored before. An id seen for the first time is always changed.
func (c *Cache) Swap(id, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.texts[id]
	c.texts[id] = text
	return !ok || prev != text
}

// Forget drops the entry for id, so that the next Swap reports a change.
func (c *Cache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.texts, id)
}

// Get returns the text stored for id.
func (c *Cache) Get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.texts[id]
	return text, ok
}

// Len returns the number of units in the cache.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts)
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = make(map[string]string)
}
