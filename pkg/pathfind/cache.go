package pathfind

import (
	"slices"
	"strings"
)

// NoExclusions is the slot key used when no vertices are excluded.
const NoExclusions = "*"

// DefaultSubPathLimit bounds full sub-path memoization. Longer paths only
// memoize the sub-paths that start at their origin or end at their
// destination.
const DefaultSubPathLimit = 64

// SlotKey builds the cache slot for a set of excluded vertices: the sorted
// identities joined with "|". Order and duplicates in excluded do not
// matter.
func SlotKey[V any](excluded []V, id func(V) string) string {
	if len(excluded) == 0 {
		return NoExclusions
	}
	ids := make([]string, len(excluded))
	for i, v := range excluded {
		ids[i] = id(v)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return strings.Join(ids, "|")
}

// Cache memoizes paths by slot, then origin, then destination. A cached nil
// path means the destination is known to be unreachable.
type Cache[V comparable] struct {
	// SubPathLimit is the longest path whose interior sub-paths are all
	// memoized. Zero or less means DefaultSubPathLimit; it never disables
	// sub-path memoization, Options.SubPaths does.
	SubPathLimit int
	slots        map[string]map[V]map[V][]V
	entries      int
}

// NewCache returns an empty cache.
func NewCache[V comparable]() *Cache[V] {
	return &Cache[V]{
		SubPathLimit: DefaultSubPathLimit,
		slots:        make(map[string]map[V]map[V][]V),
	}
}

// Get returns the cached path and true when origin to destination is known in
// slot. A nil path with true means unreachable.
func (c *Cache[V]) Get(slot string, origin, destination V) ([]V, bool) {
	byOrigin, ok := c.slots[slot]
	if !ok {
		return nil, false
	}
	byDest, ok := byOrigin[origin]
	if !ok {
		return nil, false
	}
	path, ok := byDest[destination]
	return path, ok
}

func (c *Cache[V]) put(slot string, origin, destination V, path []V) {
	byOrigin, ok := c.slots[slot]
	if !ok {
		byOrigin = make(map[V]map[V][]V)
		c.slots[slot] = byOrigin
	}
	byDest, ok := byOrigin[origin]
	if !ok {
		byDest = make(map[V][]V)
		byOrigin[origin] = byDest
	}
	if _, exists := byDest[destination]; !exists {
		c.entries++
	}
	byDest[destination] = path
}

// Save records path and its reverse.
func (c *Cache[V]) Save(slot string, path []V) {
	if len(path) == 0 {
		return
	}
	n := len(path)
	rev := reversed(path)
	c.put(slot, path[0], path[n-1], path[:n:n])
	c.put(slot, path[n-1], path[0], rev)
}

// SaveUnreachable records that neither endpoint can reach the other.
func (c *Cache[V]) SaveUnreachable(slot string, origin, destination V) {
	c.put(slot, origin, destination, nil)
	c.put(slot, destination, origin, nil)
}

// SaveSubPaths records path, its reverse and every contiguous sub-path in
// both directions. Sub-paths share storage with path.
func (c *Cache[V]) SaveSubPaths(slot string, path []V) {
	n := len(path)
	if n == 0 {
		return
	}
	rev := reversed(path)
	save := func(i, j int) {
		// path[i..j] forward, rev[n-1-j..n-1-i] backward
		c.put(slot, path[i], path[j], path[i:j+1:j+1])
		c.put(slot, path[j], path[i], rev[n-1-j:n-i:n-i])
	}

	limit := c.SubPathLimit
	if limit <= 0 {
		limit = DefaultSubPathLimit
	}
	if n > limit {
		for k := 1; k < n; k++ {
			save(0, k)
			save(k, n-1)
		}
		return
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			save(i, j)
		}
	}
}

// Clear drops every slot.
func (c *Cache[V]) Clear() {
	clear(c.slots)
	c.entries = 0
}

// Len returns the number of cached origin/destination pairs across slots.
func (c *Cache[V]) Len() int {
	return c.entries
}

// Slots returns the number of populated slots.
func (c *Cache[V]) Slots() int {
	return len(c.slots)
}

func reversed[V any](path []V) []V {
	rev := slices.Clone(path)
	slices.Reverse(rev)
	return rev
}
