package terrain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/freeeve/terrainkit/pkg/geo"
)

var (
	// ErrEmptyLayout indicates a layout without rows or columns.
	ErrEmptyLayout = errors.New("terrain: layout must have at least one row and one column")
	// ErrNonRectangular indicates rows of differing lengths.
	ErrNonRectangular = errors.New("terrain: all layout rows must have the same length")
	// ErrUnknownGlyph indicates a layout character outside the legend.
	ErrUnknownGlyph = errors.New("terrain: unknown layout glyph")
)

// Grid is an in-memory Model backed by flat row-major slices.
type Grid struct {
	width, height int
	walkable      []bool
	buildable     []bool
	heights       []float64

	obstructed   []int                 // number of obstructions covering each cell
	obstructions map[uint64][]geo.Cell // unit tag -> covered cells
}

// NewGrid returns a width x height grid with every cell unwalkable.
func NewGrid(width, height int) *Grid {
	n := width * height
	return &Grid{
		width:        width,
		height:       height,
		walkable:     make([]bool, n),
		buildable:    make([]bool, n),
		heights:      make([]float64, n),
		obstructed:   make([]int, n),
		obstructions: make(map[uint64][]geo.Cell),
	}
}

// ParseLayout builds a Grid from text rows. Row 0 is y = 0.
//
// Legend:
//
//	'#'      unwalkable
//	'0'-'9'  walkable, buildable ground at that height
//	'a'-'t'  walkable, unbuildable ground (ramps) at height (glyph-'a')/2
func ParseLayout(rows []string) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyLayout
	}
	w := len(rows[0])
	g := NewGrid(w, len(rows))
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", y, len(row), w, ErrNonRectangular)
		}
		for x, ch := range []byte(row) {
			c := geo.C(x, y)
			switch {
			case ch == '#':
			case ch >= '0' && ch <= '9':
				g.SetCell(c, true, true, float64(ch-'0'))
			case ch >= 'a' && ch <= 't':
				g.SetCell(c, true, false, float64(ch-'a')/2)
			default:
				return nil, fmt.Errorf("glyph %q at %d,%d: %w", ch, x, y, ErrUnknownGlyph)
			}
		}
	}
	return g, nil
}

// ParseLayoutString splits s into rows, ignoring blank lines and surrounding
// whitespace.
func ParseLayoutString(s string) (*Grid, error) {
	var rows []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, line)
		}
	}
	return ParseLayout(rows)
}

func (g *Grid) index(c geo.Cell) int {
	return c.Y*g.width + c.X
}

// InBounds reports whether c lies on the grid.
func (g *Grid) InBounds(c geo.Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

// SetCell overwrites the static terrain of c. Out-of-bounds cells are ignored.
func (g *Grid) SetCell(c geo.Cell, walkable, buildable bool, height float64) {
	if !g.InBounds(c) {
		return
	}
	i := g.index(c)
	g.walkable[i] = walkable
	g.buildable[i] = buildable && walkable
	g.heights[i] = height
}

// AddObstruction marks cells as blocked by the unit with the given tag,
// replacing any obstruction previously recorded for that tag.
func (g *Grid) AddObstruction(tag uint64, cells []geo.Cell) {
	g.RemoveObstruction(tag)
	var kept []geo.Cell
	for _, c := range cells {
		if g.InBounds(c) {
			g.obstructed[g.index(c)]++
			kept = append(kept, c)
		}
	}
	g.obstructions[tag] = kept
}

// RemoveObstruction clears the obstruction recorded for tag. It reports
// whether one existed.
func (g *Grid) RemoveObstruction(tag uint64) bool {
	cells, ok := g.obstructions[tag]
	if !ok {
		return false
	}
	for _, c := range cells {
		g.obstructed[g.index(c)]--
	}
	delete(g.obstructions, tag)
	return true
}

// Obstructions returns the number of active obstructions.
func (g *Grid) Obstructions() int {
	return len(g.obstructions)
}

func (g *Grid) MaxX() int { return g.width }
func (g *Grid) MaxY() int { return g.height }

func (g *Grid) IsObstructed(c geo.Cell) bool {
	return g.InBounds(c) && g.obstructed[g.index(c)] > 0
}

func (g *Grid) IsWalkable(c geo.Cell, considerObstructions bool) bool {
	if !g.InBounds(c) {
		return false
	}
	i := g.index(c)
	if considerObstructions && g.obstructed[i] > 0 {
		return false
	}
	return g.walkable[i]
}

func (g *Grid) IsBuildable(c geo.Cell, considerObstructions bool) bool {
	if !g.InBounds(c) {
		return false
	}
	i := g.index(c)
	if considerObstructions && g.obstructed[i] > 0 {
		return false
	}
	return g.buildable[i]
}

func (g *Grid) ReachableNeighbors(c geo.Cell, allowed func(geo.Cell) bool, considerObstructions bool) []geo.Cell {
	out := make([]geo.Cell, 0, 8)
	for _, d := range geo.Offsets8 {
		n := c.Add(d[0], d[1])
		if !g.IsWalkable(n, considerObstructions) {
			continue
		}
		if d[0] != 0 && d[1] != 0 {
			if !g.IsWalkable(c.Add(d[0], 0), considerObstructions) || !g.IsWalkable(c.Add(0, d[1]), considerObstructions) {
				continue
			}
		}
		if allowed != nil && !allowed(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (g *Grid) SearchGrid(center geo.Point, radius int) []geo.Cell {
	cc := center.Cell()
	var out []geo.Cell
	for y := cc.Y - radius; y <= cc.Y+radius; y++ {
		for x := cc.X - radius; x <= cc.X+radius; x++ {
			if c := geo.C(x, y); g.InBounds(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func (g *Grid) SearchRadius(center geo.Point, radius float64) []geo.Cell {
	r := int(math.Ceil(radius))
	var out []geo.Cell
	for _, c := range g.SearchGrid(center, r) {
		if c.Center().Dist(center) <= radius {
			out = append(out, c)
		}
	}
	return out
}

func (g *Grid) Height(c geo.Cell) float64 {
	if !g.InBounds(c) {
		return 0
	}
	return g.heights[g.index(c)]
}

func (g *Grid) WithWorldHeight(c geo.Cell) geo.Point3 {
	p := c.Center()
	return geo.Point3{X: p.X, Y: p.Y, Z: g.Height(c)}
}

func (g *Grid) CanPlace(center geo.Point, size int, considerObstructions bool) bool {
	for _, c := range Footprint(center, size, size) {
		if !g.IsBuildable(c, considerObstructions) {
			return false
		}
	}
	return true
}

// String renders the grid with the ParseLayout legend. Obstructed cells are
// drawn as 'X'.
func (g *Grid) String() string {
	var sb strings.Builder
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := geo.C(x, y)
			i := g.index(c)
			switch {
			case g.obstructed[i] > 0:
				sb.WriteByte('X')
			case !g.walkable[i]:
				sb.WriteByte('#')
			case g.buildable[i]:
				sb.WriteByte('0' + byte(min(9, max(0, int(g.heights[i])))))
			default:
				sb.WriteByte('a' + byte(min(19, max(0, int(g.heights[i]*2)))))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
