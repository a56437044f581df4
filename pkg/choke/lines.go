// Package choke scores every walkable cell by how much it looks like the
// middle of a narrow passage, using sight lines cast across the whole map at
// a fan of angles.
//
// The sight lines are the expensive part: tens of thousands of ray samples
// for a full-size map. They depend only on static terrain, so they are built
// once per map, persisted through EncodeLines and reloaded with DecodeLines.
package choke

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

const (
	// DefaultAngleStep gives 36 angles: 0, 5, ..., 175 degrees.
	DefaultAngleStep = 5

	sampleStep = 0.5
)

// VisionLine is a maximal walkable stretch of one ray, in traversal order.
type VisionLine struct {
	Angle  int        `json:"angle"`
	Cells  []geo.Cell `json:"cells"`
	Start  geo.Point  `json:"start"`
	End    geo.Point  `json:"end"`
	Length float64    `json:"length"`
}

func newVisionLine(angle int, cells []geo.Cell) VisionLine {
	start := cells[0].Center()
	end := cells[len(cells)-1].Center()
	return VisionLine{
		Angle:  angle,
		Cells:  cells,
		Start:  start,
		End:    end,
		Length: start.Dist(end) + 1,
	}
}

// ShorterHalf is the distance from c to the nearer end of the line, counting
// the half cell c itself occupies.
func (l VisionLine) ShorterHalf(c geo.Cell) float64 {
	p := c.Center()
	return math.Min(p.Dist(l.Start), p.Dist(l.End)) + 0.5
}

// BuildVisionLines casts, for every angle in [0, 180) at angleStep degrees, a
// family of parallel rays one cell apart that covers the rotated bounding
// box of the map, and splits each ray into its continuous walkable stretches.
// Temporary obstructions are ignored.
func BuildVisionLines(m terrain.Model, angleStep int) []VisionLine {
	if angleStep <= 0 {
		angleStep = DefaultAngleStep
	}
	w, h := float64(m.MaxX()), float64(m.MaxY())
	corners := [4]geo.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: 0, Y: h}, {X: w, Y: h}}

	var lines []VisionLine
	for angle := 0; angle < 180; angle += angleStep {
		theta := float64(angle) * math.Pi / 180
		dir := geo.Pt(math.Cos(theta), math.Sin(theta))
		normal := geo.Pt(-dir.Y, dir.X)

		minO, maxO := math.Inf(1), math.Inf(-1)
		minT, maxT := math.Inf(1), math.Inf(-1)
		for _, c := range corners {
			o := c.X*normal.X + c.Y*normal.Y
			t := c.X*dir.X + c.Y*dir.Y
			minO, maxO = math.Min(minO, o), math.Max(maxO, o)
			minT, maxT = math.Min(minT, t), math.Max(maxT, t)
		}

		for o := minO + 0.5; o < maxO; o++ {
			origin := normal.Scale(o)
			ray := castRay(m, origin, dir, minT, maxT)
			for _, seg := range walkableSegments(m, ray) {
				lines = append(lines, newVisionLine(angle, seg))
			}
		}
	}
	return lines
}

// castRay samples origin + t*dir over [minT, maxT] and returns the distinct
// in-bounds cells in order.
func castRay(m terrain.Model, origin, dir geo.Point, minT, maxT float64) []geo.Cell {
	var cells []geo.Cell
	var last geo.Cell
	for t := minT; t <= maxT; t += sampleStep {
		c := origin.Add(dir.Scale(t)).Cell()
		if c.X < 0 || c.Y < 0 || c.X >= m.MaxX() || c.Y >= m.MaxY() {
			continue
		}
		if len(cells) > 0 && c == last {
			continue
		}
		cells = append(cells, c)
		last = c
	}
	return cells
}

// walkableSegments splits ray at unwalkable cells.
func walkableSegments(m terrain.Model, ray []geo.Cell) [][]geo.Cell {
	var segs [][]geo.Cell
	var cur []geo.Cell
	for _, c := range ray {
		if m.IsWalkable(c, false) {
			cur = append(cur, c)
			continue
		}
		if len(cur) > 0 {
			segs = append(segs, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		segs = append(segs, cur)
	}
	return segs
}

// lineRecord is the compact persisted form of a VisionLine: the angle and the
// flattened x,y pairs. Endpoints and length are derived on decode.
type lineRecord struct {
	A int   `json:"a"`
	C []int `json:"c"`
}

// EncodeLines serializes vision lines for the persistence collaborator.
func EncodeLines(lines []VisionLine) ([]byte, error) {
	recs := make([]lineRecord, len(lines))
	for i, l := range lines {
		flat := make([]int, 0, 2*len(l.Cells))
		for _, c := range l.Cells {
			flat = append(flat, c.X, c.Y)
		}
		recs[i] = lineRecord{A: l.Angle, C: flat}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encode vision lines: %w", err)
	}
	return data, nil
}

// DecodeLines is the inverse of EncodeLines.
func DecodeLines(data []byte) ([]VisionLine, error) {
	var recs []lineRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode vision lines: %w", err)
	}
	lines := make([]VisionLine, 0, len(recs))
	for i, r := range recs {
		if len(r.C) == 0 || len(r.C)%2 != 0 {
			return nil, fmt.Errorf("decode vision lines: record %d has %d coordinates", i, len(r.C))
		}
		cells := make([]geo.Cell, len(r.C)/2)
		for j := range cells {
			cells[j] = geo.C(r.C[2*j], r.C[2*j+1])
		}
		lines = append(lines, newVisionLine(r.A, cells))
	}
	return lines, nil
}
