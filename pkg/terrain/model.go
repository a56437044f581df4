// Package terrain describes the walkability and buildability of a map.
//
// Model is the contract the analysis packages consume. Grid is an in-memory
// implementation used by the server, the CLI and tests; a live bot would
// implement Model over the game's own pathing and placement grids.
package terrain

import (
	"math"

	"github.com/freeeve/terrainkit/pkg/geo"
)

// Model answers per-cell terrain queries. Cells are valid for
// 0 <= X < MaxX() and 0 <= Y < MaxY(); anything outside is unwalkable.
//
// considerObstructions selects whether temporary obstructions such as
// destructible rocks count as blocking.
type Model interface {
	MaxX() int
	MaxY() int
	IsWalkable(c geo.Cell, considerObstructions bool) bool
	IsBuildable(c geo.Cell, considerObstructions bool) bool
	IsObstructed(c geo.Cell) bool

	// ReachableNeighbors returns the walkable 8-neighbors of c. Diagonal
	// moves require both orthogonal cells to be walkable. When allowed is
	// non-nil only cells it accepts are returned.
	ReachableNeighbors(c geo.Cell, allowed func(geo.Cell) bool, considerObstructions bool) []geo.Cell

	// SearchGrid returns the in-bounds cells of the square of half-width
	// radius around center's cell.
	SearchGrid(center geo.Point, radius int) []geo.Cell
	// SearchRadius returns the in-bounds cells whose centers lie within
	// radius of center.
	SearchRadius(center geo.Point, radius float64) []geo.Cell

	Height(c geo.Cell) float64
	WithWorldHeight(c geo.Cell) geo.Point3

	// CanPlace reports whether a size x size footprint centered on center
	// fits on buildable ground.
	CanPlace(center geo.Point, size int, considerObstructions bool) bool
}

// WalkableCells lists every walkable cell of m in row-major order.
func WalkableCells(m Model, considerObstructions bool) []geo.Cell {
	var out []geo.Cell
	for y := 0; y < m.MaxY(); y++ {
		for x := 0; x < m.MaxX(); x++ {
			c := geo.C(x, y)
			if m.IsWalkable(c, considerObstructions) {
				out = append(out, c)
			}
		}
	}
	return out
}

// Footprint returns the cells of a w x h rectangle centered on center.
func Footprint(center geo.Point, w, h int) []geo.Cell {
	minX := int(math.Floor(center.X - float64(w)/2 + 1e-9))
	minY := int(math.Floor(center.Y - float64(h)/2 + 1e-9))
	out := make([]geo.Cell, 0, w*h)
	for y := minY; y < minY+h; y++ {
		for x := minX; x < minX+w; x++ {
			out = append(out, geo.C(x, y))
		}
	}
	return out
}
