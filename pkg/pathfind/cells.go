package pathfind

import (
	"github.com/rs/zerolog"

	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

// CellPathfinder finds ground paths between map cells, respecting temporary
// obstructions.
type CellPathfinder struct {
	*Pathfinder[geo.Cell]
}

// NewCellPathfinder creates a pathfinder over the walkable cells of m.
// Moves go to the 8 neighbors without cutting corners and cost their
// Euclidean length.
func NewCellPathfinder(m terrain.Model, opts Options, logger zerolog.Logger) *CellPathfinder {
	graph := Graph[geo.Cell]{
		EdgeLength: geo.Cell.Dist,
		Neighbors: func(c geo.Cell) []geo.Cell {
			return m.ReachableNeighbors(c, nil, true)
		},
		ID: geo.Cell.String,
	}
	return &CellPathfinder{
		Pathfinder: New(graph, opts, logger.With().Str("layer", "cell").Logger()),
	}
}

// FindPointPath snaps from and to onto their cells and returns the path as
// cell centers.
func (p *CellPathfinder) FindPointPath(from, to geo.Point, excluded ...geo.Cell) ([]geo.Point, bool) {
	cells, ok := p.FindPath(from.Cell(), to.Cell(), excluded...)
	if !ok {
		return nil, false
	}
	return geo.CellCenters(cells), true
}

// Distance returns the ground distance between two points, or false when
// they are not connected.
func (p *CellPathfinder) Distance(from, to geo.Point) (float64, bool) {
	cells, ok := p.FindPath(from.Cell(), to.Cell())
	if !ok {
		return 0, false
	}
	return PathLength(cells, geo.Cell.Dist), true
}
