package pathfind

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zyedidia/generic/mapset"
)

// Options controls memoization.
type Options struct {
	// SubPaths memoizes every contiguous sub-path of a computed path.
	SubPaths bool `yaml:"sub_paths"`
	// SubPathLimit bounds full sub-path memoization; 0 keeps the default.
	SubPathLimit int `yaml:"sub_path_limit"`
}

// DefaultOptions returns sub-path memoization with the default limit.
func DefaultOptions() Options {
	return Options{SubPaths: true, SubPathLimit: DefaultSubPathLimit}
}

// Graph describes the vertices a Pathfinder searches over.
type Graph[V comparable] struct {
	EdgeLength func(a, b V) float64
	Neighbors  func(v V) []V
	// Normalize maps a vertex to its canonical cache key. Optional.
	Normalize func(v V) V
	// ID renders a vertex for slot keys and logs. Defaults to fmt.Sprint.
	ID func(v V) string
}

// Pathfinder answers shortest-path queries, memoizing results per exclusion
// set. Not safe for concurrent use.
type Pathfinder[V comparable] struct {
	graph    Graph[V]
	opts     Options
	cache    *Cache[V]
	logger   zerolog.Logger
	searches int
}

// New creates a Pathfinder over graph.
func New[V comparable](graph Graph[V], opts Options, logger zerolog.Logger) *Pathfinder[V] {
	if graph.ID == nil {
		graph.ID = func(v V) string { return fmt.Sprint(v) }
	}
	cache := NewCache[V]()
	if opts.SubPathLimit > 0 {
		cache.SubPathLimit = opts.SubPathLimit
	}
	return &Pathfinder[V]{graph: graph, opts: opts, cache: cache, logger: logger}
}

// FindPath returns the shortest path from origin to destination that enters
// none of the excluded vertices, or nil and false when there is none.
func (p *Pathfinder[V]) FindPath(origin, destination V, excluded ...V) ([]V, bool) {
	if p.graph.Normalize != nil {
		origin = p.graph.Normalize(origin)
		destination = p.graph.Normalize(destination)
		norm := make([]V, len(excluded))
		for i, v := range excluded {
			norm[i] = p.graph.Normalize(v)
		}
		excluded = norm
	}
	slot := SlotKey(excluded, p.graph.ID)
	if path, ok := p.cache.Get(slot, origin, destination); ok {
		return path, path != nil
	}

	neighbors := p.graph.Neighbors
	if len(excluded) > 0 {
		skip := mapset.New[V]()
		for _, v := range excluded {
			skip.Put(v)
		}
		neighbors = func(v V) []V {
			var out []V
			for _, n := range p.graph.Neighbors(v) {
				if !skip.Has(n) {
					out = append(out, n)
				}
			}
			return out
		}
	}

	p.searches++
	path, ok := AStar(origin, destination, p.graph.EdgeLength, neighbors)
	if !ok {
		p.logger.Info().
			Str("origin", p.graph.ID(origin)).
			Str("destination", p.graph.ID(destination)).
			Str("slot", slot).
			Msg("No path found")
		p.cache.SaveUnreachable(slot, origin, destination)
		return nil, false
	}
	if p.opts.SubPaths {
		p.cache.SaveSubPaths(slot, path)
	} else {
		p.cache.Save(slot, path)
	}
	return path, true
}

// Invalidate drops every cached path. Call it whenever terrain changes.
func (p *Pathfinder[V]) Invalidate() {
	n := p.cache.Len()
	p.cache.Clear()
	p.logger.Debug().Int("entries", n).Msg("Path cache cleared")
}

// Searches returns how many A* searches have run.
func (p *Pathfinder[V]) Searches() int {
	return p.searches
}

// Cache exposes the underlying cache.
func (p *Pathfinder[V]) Cache() *Cache[V] {
	return p.cache
}
