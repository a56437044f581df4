// Package cluster groups point-like items: breadth-first flood fill over a
// caller-supplied neighbor relation, and density-based clustering (DBSCAN)
// over a caller-supplied distance.
//
// Both algorithms are generic over any comparable item type. They never
// inspect the items themselves; adjacency and distance come entirely from the
// caller, which keeps terrain knowledge out of this package.
package cluster

import (
	"slices"

	"github.com/zyedidia/generic/mapset"
)

// NeighborFunc returns the neighbors of item. allowed is the candidate set the
// traversal is restricted to; implementations may use it to prune early, but
// FloodFill filters against it regardless.
type NeighborFunc[T comparable] func(item T, allowed mapset.Set[T]) []T

// FloodFill returns the connected component of cells that contains start.
// The result never includes items outside cells. If start is not in cells the
// result is empty.
//
// Time: O(V + E) over the component.
func FloodFill[T comparable](cells mapset.Set[T], start T, neighbors NeighborFunc[T]) mapset.Set[T] {
	visited := mapset.New[T]()
	if !cells.Has(start) {
		return visited
	}
	visited.Put(start)
	queue := []T{start}
	for qi := 0; qi < len(queue); qi++ {
		cur := queue[qi]
		for _, n := range neighbors(cur, cells) {
			if !cells.Has(n) || visited.Has(n) {
				continue
			}
			visited.Put(n)
			queue = append(queue, n)
		}
	}
	return visited
}

// FloodFillAll partitions cells into connected components. Components are
// returned sorted internally by cmp and ordered by their smallest member, so
// the output is deterministic for a given input set.
func FloodFillAll[T comparable](cells mapset.Set[T], neighbors NeighborFunc[T], cmp func(a, b T) int) [][]T {
	ordered := Items(cells)
	slices.SortFunc(ordered, cmp)

	assigned := mapset.New[T]()
	var comps [][]T
	for _, c := range ordered {
		if assigned.Has(c) {
			continue
		}
		comp := Items(FloodFill(cells, c, neighbors))
		slices.SortFunc(comp, cmp)
		for _, m := range comp {
			assigned.Put(m)
		}
		comps = append(comps, comp)
	}
	return comps
}

// Items returns the members of s in unspecified order.
func Items[T comparable](s mapset.Set[T]) []T {
	out := make([]T, 0, s.Size())
	s.Each(func(item T) {
		out = append(out, item)
	})
	return out
}

// SetOf builds a set from items.
func SetOf[T comparable](items []T) mapset.Set[T] {
	s := mapset.New[T]()
	for _, it := range items {
		s.Put(it)
	}
	return s
}
