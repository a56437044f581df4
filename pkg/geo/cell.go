package geo

import (
	"cmp"
	"math"
	"strconv"
)

// Cell is a 1x1 grid position. Equality and hashing use the integer
// coordinates only, so Cell is safe as a map key for graphs and caches.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// C is a shorthand constructor for Cell.
func C(x, y int) Cell {
	return Cell{X: x, Y: y}
}

// Center returns the world position of the middle of the cell.
func (c Cell) Center() Point {
	return Point{float64(c.X) + 0.5, float64(c.Y) + 0.5}
}

// Corner returns the world position of the cell's lower-left corner.
func (c Cell) Corner() Point {
	return Point{float64(c.X), float64(c.Y)}
}

// Add offsets c by (dx, dy).
func (c Cell) Add(dx, dy int) Cell {
	return Cell{c.X + dx, c.Y + dy}
}

// Dist returns the Euclidean distance between cell centers.
func (c Cell) Dist(o Cell) float64 {
	return math.Hypot(float64(c.X-o.X), float64(c.Y-o.Y))
}

// Manhattan returns |dx| + |dy|.
func (c Cell) Manhattan(o Cell) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y)
}

// Chebyshev returns max(|dx|, |dy|).
func (c Cell) Chebyshev(o Cell) int {
	return max(abs(c.X-o.X), abs(c.Y-o.Y))
}

// String is the canonical identity used in cache slot keys.
func (c Cell) String() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

// Compare orders cells by row, then column.
func (c Cell) Compare(o Cell) int {
	if r := cmp.Compare(c.Y, o.Y); r != 0 {
		return r
	}
	return cmp.Compare(c.X, o.X)
}

// Offsets4 are the orthogonal neighbor offsets.
var Offsets4 = [4][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

// Offsets8 are the orthogonal then diagonal neighbor offsets.
var Offsets8 = [8][2]int{
	{1, 0}, {0, 1}, {-1, 0}, {0, -1},
	{1, 1}, {-1, 1}, {-1, -1}, {1, -1},
}

// Neighbors4 returns the four orthogonal neighbors of c.
func (c Cell) Neighbors4() []Cell {
	out := make([]Cell, 0, 4)
	for _, d := range Offsets4 {
		out = append(out, c.Add(d[0], d[1]))
	}
	return out
}

// Neighbors8 returns all eight neighbors of c.
func (c Cell) Neighbors8() []Cell {
	out := make([]Cell, 0, 8)
	for _, d := range Offsets8 {
		out = append(out, c.Add(d[0], d[1]))
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
