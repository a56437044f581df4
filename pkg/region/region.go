// Package region decomposes a map into regions: open areas, ramps and
// expansion sites, linked by the boundaries (chokepoints) between them.
//
// Regions live in an arena (Analysis.Regions) and refer to each other by
// index, so the neighbor graph has no pointer cycles.
package region

import (
	"fmt"
	"strings"

	"github.com/freeeve/terrainkit/pkg/geo"
)

// Type is the kind of terrain a region covers.
type Type int

const (
	TypeOpenArea Type = iota
	TypeRamp
	TypeExpand
)

var typeNames = [...]string{"open_area", "ramp", "expand"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	for i, name := range typeNames {
		if name == string(b) {
			*t = Type(i)
			return nil
		}
	}
	return fmt.Errorf("unknown region type %q", b)
}

// palette colors regions for debug rendering.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080", "#e6beff",
}

// Region is a contiguous, typed piece of walkable terrain.
type Region struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Color      string     `json:"color"`
	Type       Type       `json:"type"`
	Obstructed bool       `json:"obstructed"`
	Expand     int        `json:"expand"` // index into Analysis.Expands, -1 when none
	Neighbors  []int      `json:"neighbors"`
	Cells      []geo.Cell `json:"cells"`
	Center     geo.Point  `json:"center"`
}

func newRegion(id int, t Type, cells []geo.Cell) *Region {
	center, _ := geo.CenterOfCells(cells)
	r := &Region{
		ID:     id,
		Type:   t,
		Expand: -1,
		Cells:  cells,
		Center: center,
		Color:  palette[id%len(palette)],
	}
	r.rename()
	return r
}

func (r *Region) rename() {
	r.Name = fmt.Sprintf("%s-%d", strings.ReplaceAll(r.Type.String(), "_", "-"), r.ID)
}

// IsNeighbor reports whether r shares a boundary with the region id.
func (r *Region) IsNeighbor(id int) bool {
	for _, n := range r.Neighbors {
		if n == id {
			return true
		}
	}
	return false
}

// Boundary is the shared edge between two neighboring regions: the cells on
// either side that are adjacent to a cell of the other region.
type Boundary struct {
	A          int        `json:"a"` // lower region ID
	B          int        `json:"b"`
	Cells      []geo.Cell `json:"cells"`
	Chokepoint int        `json:"chokepoint"` // detected chokepoint ID, -1 when none
}

// Other returns the region on the far side of the boundary from id.
func (b *Boundary) Other(id int) int {
	if b.A == id {
		return b.B
	}
	return b.A
}

type pairKey [2]int

func keyOf(a, b int) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}
