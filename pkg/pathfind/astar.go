// Package pathfind implements A* over any comparable vertex type and a
// memoizing Pathfinder that sits in front of it.
//
// The same Pathfinder serves both layers the bot navigates with: raw map
// cells (NewCellPathfinder) and regions (see package region).
package pathfind

import (
	"slices"

	"github.com/zyedidia/generic/heap"
	"github.com/zyedidia/generic/mapset"
)

type openEntry[V comparable] struct {
	v V
	f float64
}

// AStar returns the cheapest path from origin to destination, both ends
// included, or nil and false when the destination cannot be reached.
//
// edgeLength is both the cost of moving between adjacent vertices and the
// heuristic from a vertex to the destination, so it must never overestimate
// (straight-line distance on a grid does not).
func AStar[V comparable](origin, destination V, edgeLength func(a, b V) float64, neighbors func(V) []V) ([]V, bool) {
	if origin == destination {
		return []V{origin}, true
	}

	open := heap.New(func(a, b openEntry[V]) bool { return a.f < b.f })
	gScore := map[V]float64{origin: 0}
	cameFrom := make(map[V]V)
	closed := mapset.New[V]()

	open.Push(openEntry[V]{v: origin, f: edgeLength(origin, destination)})
	for open.Size() > 0 {
		cur, _ := open.Pop()
		if closed.Has(cur.v) {
			// stale entry superseded by a cheaper push
			continue
		}
		if cur.v == destination {
			return reconstruct(cameFrom, origin, destination), true
		}
		closed.Put(cur.v)

		g := gScore[cur.v]
		for _, n := range neighbors(cur.v) {
			if closed.Has(n) {
				continue
			}
			tentative := g + edgeLength(cur.v, n)
			if old, ok := gScore[n]; ok && tentative >= old {
				continue
			}
			gScore[n] = tentative
			cameFrom[n] = cur.v
			open.Push(openEntry[V]{v: n, f: tentative + edgeLength(n, destination)})
		}
	}
	return nil, false
}

func reconstruct[V comparable](cameFrom map[V]V, origin, destination V) []V {
	path := []V{destination}
	for cur := destination; cur != origin; {
		cur = cameFrom[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path
}

// PathLength sums edgeLength over consecutive vertices of path.
func PathLength[V any](path []V, edgeLength func(a, b V) float64) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += edgeLength(path[i-1], path[i])
	}
	return total
}
