package region

import (
	"cmp"
	"math"
	"slices"

	"github.com/rs/zerolog"

	"github.com/freeeve/terrainkit/pkg/cluster"
	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

// RampOptions tunes ramp detection.
type RampOptions struct {
	// MinHeights is the number of distinct heights a ramp must span.
	MinHeights int `yaml:"min_heights"`
	// MinSpan is the height difference a ramp must exceed.
	MinSpan float64 `yaml:"min_span"`
	// Density scales the densest connectivity in a cluster into the DBSCAN
	// minPoints. Ramps are less connected than open ground, so this is
	// below 1.
	Density float64 `yaml:"density"`
}

// DefaultRampOptions returns the tuning used when nothing else is configured.
func DefaultRampOptions() RampOptions {
	return RampOptions{MinHeights: 4, MinSpan: 1, Density: 0.875}
}

// Ramp is a detected ramp.
type Ramp struct {
	Cells  []geo.Cell `json:"cells"`
	Top    geo.Point  `json:"top"`    // center of the highest cells
	Bottom geo.Point  `json:"bottom"` // center of the lowest cells
	Low    float64    `json:"low"`
	High   float64    `json:"high"`
}

// RampFinder finds ramps among walkable, unbuildable cells.
type RampFinder struct {
	model  terrain.Model
	opts   RampOptions
	logger zerolog.Logger
}

// NewRampFinder creates a RampFinder over m.
func NewRampFinder(m terrain.Model, opts RampOptions, logger zerolog.Logger) *RampFinder {
	return &RampFinder{model: m, opts: opts, logger: logger}
}

const sqrt2 = math.Sqrt2 + 1e-9

func cellDist(a, b geo.Cell) float64 { return a.Dist(b) }

// FindRamps returns the ramps of the map ordered by their smallest cell.
//
// Unbuildable walkable cells are split loosely (4-adjacency), then each loose
// cluster is re-clustered at 8-adjacency with minPoints derived from its own
// densest cell. What a round leaves as noise is re-clustered with its own
// profile, so a narrow ramp touching a wide one comes out separately.
// Clusters without enough height variation are rejected, and rejected cells
// next to a ramp are given to it.
func (f *RampFinder) FindRamps() []Ramp {
	var candidates []geo.Cell
	for _, c := range terrain.WalkableCells(f.model, false) {
		if !f.model.IsBuildable(c, false) {
			candidates = append(candidates, c)
		}
	}
	loose, _ := cluster.DBSCAN(candidates, 1, 1, cellDist)

	var ramps [][]geo.Cell
	var rejected []geo.Cell
	for _, lc := range loose {
		r, rest := f.split(lc)
		ramps = append(ramps, r...)
		rejected = append(rejected, rest...)
	}
	ramps = f.reattach(ramps, rejected)

	out := make([]Ramp, 0, len(ramps))
	for _, cells := range ramps {
		slices.SortFunc(cells, geo.Cell.Compare)
		out = append(out, f.describe(cells))
	}
	slices.SortFunc(out, func(a, b Ramp) int { return a.Cells[0].Compare(b.Cells[0]) })

	f.logger.Info().
		Int("candidates", len(candidates)).
		Int("ramps", len(out)).
		Msg("Ramps found")
	return out
}

func (f *RampFinder) split(cells []geo.Cell) (ramps [][]geo.Cell, rest []geo.Cell) {
	pending := cells
	for len(pending) > 0 {
		minPts := int(math.Ceil(float64(maxConnectivity(pending)+1) * f.opts.Density))
		clusters, noise := cluster.DBSCAN(pending, sqrt2, max(1, minPts), cellDist)
		if len(clusters) == 0 {
			rest = append(rest, pending...)
			break
		}
		for _, c := range clusters {
			if f.isRamp(c) {
				ramps = append(ramps, c)
			} else {
				rest = append(rest, c...)
			}
		}
		pending = noise
	}
	return ramps, rest
}

// maxConnectivity returns the largest number of 8-neighbors any cell has
// inside cells.
func maxConnectivity(cells []geo.Cell) int {
	set := cluster.SetOf(cells)
	best := 0
	for _, c := range cells {
		n := 0
		for _, nb := range c.Neighbors8() {
			if set.Has(nb) {
				n++
			}
		}
		best = max(best, n)
	}
	return best
}

func (f *RampFinder) isRamp(cells []geo.Cell) bool {
	heights := make(map[float64]bool)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range cells {
		h := f.model.Height(c)
		heights[math.Round(h*100)/100] = true
		lo, hi = math.Min(lo, h), math.Max(hi, h)
	}
	return len(heights) >= f.opts.MinHeights && hi-lo > f.opts.MinSpan
}

// reattach hands rejected cells to the ramp they are reachable-adjacent to,
// nearest first, until no more cells can be placed.
func (f *RampFinder) reattach(ramps [][]geo.Cell, rejected []geo.Cell) [][]geo.Cell {
	owner := make(map[geo.Cell]int)
	for i, r := range ramps {
		for _, c := range r {
			owner[c] = i
		}
	}

	remaining := rejected
	for len(remaining) > 0 && len(owner) > 0 {
		dist := make(map[geo.Cell]float64, len(remaining))
		for _, c := range remaining {
			d := math.Inf(1)
			for o := range owner {
				d = math.Min(d, c.Dist(o))
			}
			dist[c] = d
		}
		slices.SortFunc(remaining, func(a, b geo.Cell) int {
			if r := cmp.Compare(dist[a], dist[b]); r != 0 {
				return r
			}
			return a.Compare(b)
		})

		var next []geo.Cell
		for _, c := range remaining {
			best, bestD := -1, math.Inf(1)
			for _, n := range f.model.ReachableNeighbors(c, nil, false) {
				if i, ok := owner[n]; ok && c.Dist(n) < bestD {
					best, bestD = i, c.Dist(n)
				}
			}
			if best < 0 {
				next = append(next, c)
				continue
			}
			owner[c] = best
			ramps[best] = append(ramps[best], c)
		}
		if len(next) == len(remaining) {
			break
		}
		f.logger.Debug().Int("reattached", len(remaining)-len(next)).Msg("Ramp noise reattached")
		remaining = next
	}
	return ramps
}

func (f *RampFinder) describe(cells []geo.Cell) Ramp {
	r := Ramp{Cells: cells, Low: math.Inf(1), High: math.Inf(-1)}
	for _, c := range cells {
		h := f.model.Height(c)
		r.Low, r.High = math.Min(r.Low, h), math.Max(r.High, h)
	}
	var top, bottom []geo.Cell
	for _, c := range cells {
		switch f.model.Height(c) {
		case r.High:
			top = append(top, c)
		case r.Low:
			bottom = append(bottom, c)
		}
	}
	r.Top, _ = geo.CenterOfCells(top)
	r.Bottom, _ = geo.CenterOfCells(bottom)
	return r
}
