package flow

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog is the in-process registry of validated flow definitions. It is
// the single source of truth for resolving a project's flow_id.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// Add validates the definition and registers it. Registering the same flow
// id twice is an error: definitions are immutable once published.
func (c *Catalog) Add(d *Definition) error {
	if !d.Validated() {
		if _, err := Validate(d); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.defs[d.ID]; exists {
		return fmt.Errorf("flow %q is already registered", d.ID)
	}
	c.defs[d.ID] = d
	return nil
}

// Get returns the validated definition for the given flow id.
func (c *Catalog) Get(id string) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.defs[id]
	return d, ok
}

// IDs returns the registered flow ids, sorted.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
