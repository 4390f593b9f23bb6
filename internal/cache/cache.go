// Package cache implements the generation-counter read-through reference
// cache: six slots (settings, accounts, cash-only accounts, tags,
// categories-flat, categories-with-path), each coherent with a global
// monotonic generation counter bumped by the mutation-aware middleware.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Slot names the six cached reference-data views.
type Slot int

const (
	SlotSettings Slot = iota
	SlotAccounts
	SlotCashAccounts
	SlotTags
	SlotCategoriesFlat
	SlotCategoriesWithPath
	slotCount
)

// Loader fetches the current value for a slot from the persistence layer.
type Loader func() (any, error)

type entry struct {
	mu         sync.RWMutex
	generation uint64
	value      any
}

// Cache is the process-wide reference-data cache. One instance is
// constructed at application startup and shared by every handler; tests
// construct a fresh instance per test (no ambient singleton), per spec.md §9.
type Cache struct {
	generation atomic.Uint64
	slots      [slotCount]*entry
	log        zerolog.Logger
}

// New constructs an empty Cache at generation 0.
func New(log zerolog.Logger) *Cache {
	c := &Cache{log: log.With().Str("component", "cache").Logger()}
	for i := range c.slots {
		c.slots[i] = &entry{}
	}
	return c
}

// Generation returns the current global generation counter.
func (c *Cache) Generation() uint64 {
	return c.generation.Load()
}

// Bump atomically increments the global generation counter and returns the
// new value. Called exactly once per successful mutating request, by the
// mutation-aware middleware (§4.12), after the response has been
// materialized.
func (c *Cache) Bump() uint64 {
	return c.generation.Add(1)
}

// Get implements the read protocol of §4.2: sample the generation, return
// the stored value if its generation matches, otherwise load, store under
// the sampled generation, and return. A racing writer may invalidate the
// freshly stored value immediately; the next Get observes the staleness and
// reloads, which is the "eventually consistent within one request" property
// the spec calls out.
func (c *Cache) Get(slot Slot, load Loader) (any, error) {
	gen := c.generation.Load()
	e := c.slots[slot]

	e.mu.RLock()
	if e.generation == gen && e.value != nil {
		v := e.value
		e.mu.RUnlock()
		return v, nil
	}
	e.mu.RUnlock()

	value, err := load()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	// Only store under gen if no newer write raced ahead of us; storing a
	// stale generation is harmless since the next read would reload anyway,
	// but preferring the newest observed generation avoids a needless reload.
	if gen >= e.generation {
		e.generation = gen
		e.value = value
	}
	e.mu.Unlock()

	return value, nil
}

// Invalidate clears a single slot's stored value without touching the
// generation counter; used by tests and by explicit cache-warming paths.
func (c *Cache) Invalidate(slot Slot) {
	e := c.slots[slot]
	e.mu.Lock()
	e.value = nil
	e.generation = 0
	e.mu.Unlock()
}
