package region

import (
	"strconv"

	"github.com/rs/zerolog"

	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/pathfind"
)

// Pathfinder finds paths through the region graph. Obstructed regions are
// only entered as a path's endpoint.
type Pathfinder struct {
	*pathfind.Pathfinder[int]
	analysis *Analysis
	target   int
}

// NewPathfinder creates a region-level pathfinder over a. Edge lengths are
// the distances between region centers.
func NewPathfinder(a *Analysis, opts pathfind.Options, logger zerolog.Logger) *Pathfinder {
	p := &Pathfinder{analysis: a, target: -1}
	graph := pathfind.Graph[int]{
		EdgeLength: func(x, y int) float64 {
			return a.Regions[x].Center.Dist(a.Regions[y].Center)
		},
		Neighbors: func(id int) []int {
			var out []int
			for _, n := range a.Regions[id].Neighbors {
				if !a.Regions[n].Obstructed || n == p.target {
					out = append(out, n)
				}
			}
			return out
		},
		ID: strconv.Itoa,
	}
	p.Pathfinder = pathfind.New(graph, opts, logger.With().Str("layer", "region").Logger())
	return p
}

// FindPath returns the region IDs from origin to destination, avoiding the
// excluded regions.
func (p *Pathfinder) FindPath(origin, destination int, excluded ...int) ([]int, bool) {
	if p.analysis.Region(origin) == nil || p.analysis.Region(destination) == nil {
		return nil, false
	}
	p.target = destination
	defer func() { p.target = -1 }()
	return p.Pathfinder.FindPath(origin, destination, excluded...)
}

// FindRegions returns the regions a path between two points passes through.
func (p *Pathfinder) FindRegions(from, to geo.Point, excluded ...int) ([]*Region, bool) {
	a, okA := p.analysis.RegionAt(from.Cell())
	b, okB := p.analysis.RegionAt(to.Cell())
	if !okA || !okB {
		return nil, false
	}
	ids, ok := p.FindPath(a.ID, b.ID, excluded...)
	if !ok {
		return nil, false
	}
	out := make([]*Region, len(ids))
	for i, id := range ids {
		out[i] = p.analysis.Regions[id]
	}
	return out, true
}
