package choke

import (
	"cmp"
	"slices"

	"github.com/rs/zerolog"
	"github.com/zyedidia/generic/mapset"

	"github.com/freeeve/terrainkit/pkg/cluster"
	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

// Options tunes line generation and chokepoint extraction.
//
// A cell is a chokepoint cell when its score reaches both Threshold and
// Relative times the median score of the map. Scores depend on map scale,
// so the relative bar tracks the map while the floor keeps open ground out
// of maps that are mostly corridors.
type Options struct {
	AngleStep int     `yaml:"angle_step"`
	Threshold float64 `yaml:"threshold"` // absolute score floor
	Relative  float64 `yaml:"relative"`  // multiple of the median score; 0 disables
	MinCells  int     `yaml:"min_cells"` // smaller groups are discarded
}

// DefaultOptions returns the tuning used when nothing else is configured.
func DefaultOptions() Options {
	return Options{
		AngleStep: DefaultAngleStep,
		Threshold: 0.3,
		Relative:  1.4,
		MinCells:  1,
	}
}

// Node is a walkable cell together with the vision lines crossing it.
type Node struct {
	Cell  geo.Cell
	Lines []int // indices into Field.Lines
	Score float64
}

// Field is the per-cell choke score over a map.
type Field struct {
	Lines []VisionLine
	nodes map[geo.Cell]*Node
}

// Node returns the node for c, or nil when no line crosses it.
func (f *Field) Node(c geo.Cell) *Node {
	return f.nodes[c]
}

// Score returns the choke score of c, 0 for cells no line crosses.
func (f *Field) Score(c geo.Cell) float64 {
	if n := f.nodes[c]; n != nil {
		return n.Score
	}
	return 0
}

// Len returns the number of scored cells.
func (f *Field) Len() int {
	return len(f.nodes)
}

// Chokepoint is a connected group of cells whose scores pass the threshold.
type Chokepoint struct {
	ID     int        `json:"id"`
	Cells  []geo.Cell `json:"cells"`
	Peak   geo.Cell   `json:"peak"`
	Score  float64    `json:"score"`
	Center geo.Point  `json:"center"`
}

// Detector turns terrain into choke scores and chokepoints.
type Detector struct {
	model  terrain.Model
	opts   Options
	logger zerolog.Logger
}

// NewDetector creates a Detector over m.
func NewDetector(m terrain.Model, opts Options, logger zerolog.Logger) *Detector {
	if opts.AngleStep <= 0 {
		opts.AngleStep = DefaultAngleStep
	}
	return &Detector{model: m, opts: opts, logger: logger}
}

// BuildLines casts the vision lines for the detector's map.
func (d *Detector) BuildLines() []VisionLine {
	lines := BuildVisionLines(d.model, d.opts.AngleStep)
	d.logger.Info().
		Int("lines", len(lines)).
		Int("angleStep", d.opts.AngleStep).
		Msg("Vision lines built")
	return lines
}

// Score records every line against the cells it crosses and scores each
// walkable cell.
//
// This is not the plain (shorterHalf/len)² ratio averaged over the least
// choke-like quarter of lines. Each line is normalized by its
// perpendicular companion instead: for a line L through c with companion P
// (the shortest line at L's angle + 90 degrees), v(L) = shorterHalf(L, c) /
// (len(L) + len(P)), which lies in [0, 0.5]. The score is the mean of
// (2 v)² over the quarter of c's lines with the largest v. The middle of a
// long, narrow, symmetric passage scores well above open ground, which sits
// near 0.25 in the middle of a field and lower along its walls.
func (d *Detector) Score(lines []VisionLine) *Field {
	f := &Field{Lines: lines, nodes: make(map[geo.Cell]*Node)}
	for _, c := range terrain.WalkableCells(d.model, false) {
		f.nodes[c] = &Node{Cell: c}
	}
	for i, l := range lines {
		for _, c := range l.Cells {
			if n := f.nodes[c]; n != nil {
				n.Lines = append(n.Lines, i)
			}
		}
	}
	for _, n := range f.nodes {
		n.Score = scoreNode(n, lines)
	}
	d.logger.Debug().Int("cells", len(f.nodes)).Msg("Choke scores computed")
	return f
}

func scoreNode(n *Node, lines []VisionLine) float64 {
	if len(n.Lines) == 0 {
		return 0
	}
	shortest := make(map[int]float64, 36)
	for _, li := range n.Lines {
		l := lines[li]
		if cur, ok := shortest[l.Angle]; !ok || l.Length < cur {
			shortest[l.Angle] = l.Length
		}
	}

	vs := make([]float64, 0, len(n.Lines))
	for _, li := range n.Lines {
		l := lines[li]
		perp, ok := shortest[(l.Angle+90)%180]
		if !ok {
			continue
		}
		vs = append(vs, l.ShorterHalf(n.Cell)/(l.Length+perp))
	}
	if len(vs) == 0 {
		return 0
	}
	slices.SortFunc(vs, func(a, b float64) int { return cmp.Compare(b, a) })
	k := max(1, len(vs)/4)
	var sum float64
	for _, v := range vs[:k] {
		sum += 4 * v * v
	}
	return sum / float64(k)
}

// Cutoff returns the score a cell of f needs to be part of a chokepoint.
func (d *Detector) Cutoff(f *Field) float64 {
	cutoff := d.opts.Threshold
	if d.opts.Relative <= 0 || len(f.nodes) == 0 {
		return cutoff
	}
	scores := make([]float64, 0, len(f.nodes))
	for _, n := range f.nodes {
		scores = append(scores, n.Score)
	}
	slices.Sort(scores)
	median := scores[len(scores)/2]
	if len(scores)%2 == 0 {
		median = (scores[len(scores)/2-1] + median) / 2
	}
	return max(cutoff, d.opts.Relative*median)
}

// Extract groups cells scoring at least Cutoff into chokepoints. Groups are
// 8-connected over walkable terrain. Chokepoints are ordered by descending
// peak score and numbered in that order.
func (d *Detector) Extract(f *Field) []Chokepoint {
	cutoff := d.Cutoff(f)
	hot := mapset.New[geo.Cell]()
	for c, n := range f.nodes {
		if n.Score >= cutoff {
			hot.Put(c)
		}
	}
	neighbors := func(c geo.Cell, allowed mapset.Set[geo.Cell]) []geo.Cell {
		return d.model.ReachableNeighbors(c, allowed.Has, false)
	}

	var out []Chokepoint
	for _, comp := range cluster.FloodFillAll(hot, neighbors, geo.Cell.Compare) {
		if len(comp) < d.opts.MinCells {
			continue
		}
		cp := Chokepoint{Cells: comp, Peak: comp[0], Score: f.Score(comp[0])}
		for _, c := range comp[1:] {
			if s := f.Score(c); s > cp.Score {
				cp.Peak, cp.Score = c, s
			}
		}
		cp.Center, _ = geo.CenterOfCells(comp)
		out = append(out, cp)
	}
	slices.SortStableFunc(out, func(a, b Chokepoint) int {
		if r := cmp.Compare(b.Score, a.Score); r != 0 {
			return r
		}
		return a.Peak.Compare(b.Peak)
	})
	for i := range out {
		out[i].ID = i
	}
	d.logger.Info().
		Int("chokepoints", len(out)).
		Float64("cutoff", cutoff).
		Msg("Chokepoints extracted")
	return out
}

// Detect scores the map from lines and extracts its chokepoints.
func (d *Detector) Detect(lines []VisionLine) (*Field, []Chokepoint) {
	f := d.Score(lines)
	return f, d.Extract(f)
}
