package region

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zyedidia/generic/mapset"

	"github.com/freeeve/terrainkit/pkg/choke"
	"github.com/freeeve/terrainkit/pkg/cluster"
	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/pathfind"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

// Options groups the tuning of every analysis phase.
type Options struct {
	Ramps   RampOptions      `yaml:"ramps"`
	Expands ExpandOptions    `yaml:"expands"`
	Choke   choke.Options    `yaml:"choke"`
	Paths   pathfind.Options `yaml:"paths"`
}

// DefaultOptions returns the default tuning for every phase.
func DefaultOptions() Options {
	return Options{
		Ramps:   DefaultRampOptions(),
		Expands: DefaultExpandOptions(),
		Choke:   choke.DefaultOptions(),
		Paths:   pathfind.DefaultOptions(),
	}
}

// Input is what a map analysis runs over.
type Input struct {
	Model      terrain.Model
	Units      []terrain.Unit
	SelfStart  geo.Point
	EnemyStart geo.Point
	// Lines are previously persisted vision lines. When nil they are cast
	// from the model.
	Lines []choke.VisionLine
}

// Builder runs the full map analysis.
type Builder struct {
	opts   Options
	logger zerolog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options, logger zerolog.Logger) *Builder {
	return &Builder{opts: opts, logger: logger}
}

// Build decomposes the map into regions. It blocks for the whole analysis
// and checks ctx only between phases.
//
// It returns the vision lines it used alongside the analysis so the caller
// can persist freshly cast ones.
func (b *Builder) Build(ctx context.Context, in Input) (*Analysis, []choke.VisionLine, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := b.logger.With().Str("run", runID).Logger()
	m := in.Model

	detector := choke.NewDetector(m, b.opts.Choke, log)
	lines := in.Lines
	if lines == nil {
		lines = detector.BuildLines()
	}
	_, chokepoints := detector.Detect(lines)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ramps := NewRampFinder(m, b.opts.Ramps, log).FindRamps()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	ef := NewExpandFinder(m, b.opts.Expands, log)
	expands, fields := ef.Find(in.Units)
	if len(expands) != fields {
		err := &AnalysisError{Fields: fields, Expands: len(expands)}
		log.Error().Err(err).Msg("Map analysis failed")
		return nil, nil, err
	}
	ground := pathfind.NewCellPathfinder(m, b.opts.Paths, log)
	ef.Classify(expands, in.SelfStart, in.EnemyStart, ground.Distance)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	a := &Analysis{
		RunID:       runID,
		Ramps:       ramps,
		Expands:     expands,
		Chokepoints: chokepoints,
		model:       m,
	}
	b.partition(a)
	b.link(a)
	a.refreshObstructions()
	annotateChokepoints(a)
	if err := a.index(); err != nil {
		return nil, nil, err
	}
	b.markPockets(a, in.EnemyStart, log)

	log.Info().
		Int("regions", len(a.Regions)).
		Int("ramps", len(a.Ramps)).
		Int("expands", len(a.Expands)).
		Int("chokepoints", len(a.Chokepoints)).
		Dur("elapsed", time.Since(start)).
		Msg("Map analysis complete")
	return a, lines, nil
}

// partition fills the region arena: ramps first, then the connected
// components of the remaining walkable cells. Open areas holding an
// expansion site become expand regions.
func (b *Builder) partition(a *Analysis) {
	m := a.model
	a.regionOf = make(map[geo.Cell]int)
	add := func(t Type, cells []geo.Cell) *Region {
		r := newRegion(len(a.Regions), t, cells)
		a.Regions = append(a.Regions, r)
		for _, c := range cells {
			a.regionOf[c] = r.ID
		}
		return r
	}

	for _, ramp := range a.Ramps {
		add(TypeRamp, ramp.Cells)
	}

	open := mapset.New[geo.Cell]()
	for _, c := range terrain.WalkableCells(m, false) {
		if _, taken := a.regionOf[c]; !taken {
			open.Put(c)
		}
	}
	neighbors := func(c geo.Cell, allowed mapset.Set[geo.Cell]) []geo.Cell {
		return m.ReachableNeighbors(c, allowed.Has, false)
	}
	for _, comp := range cluster.FloodFillAll(open, neighbors, geo.Cell.Compare) {
		add(TypeOpenArea, comp)
	}

	for i, e := range a.Expands {
		id, ok := a.regionOf[e.Position.Cell()]
		if !ok {
			continue
		}
		r := a.Regions[id]
		if r.Type == TypeOpenArea {
			r.Type = TypeExpand
			r.Expand = i
			r.rename()
		}
	}
}

// link derives the neighbor relation and boundaries from adjacent cell pairs
// that fall in different regions.
func (b *Builder) link(a *Analysis) {
	cells := make(map[pairKey]mapset.Set[geo.Cell])
	for _, r := range a.Regions {
		for _, c := range r.Cells {
			for _, n := range a.model.ReachableNeighbors(c, nil, false) {
				other, ok := a.regionOf[n]
				if !ok || other == r.ID {
					continue
				}
				k := keyOf(r.ID, other)
				set, ok := cells[k]
				if !ok {
					set = mapset.New[geo.Cell]()
					cells[k] = set
				}
				set.Put(c)
				set.Put(n)
			}
		}
	}

	keys := make([]pairKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y pairKey) int {
		if x[0] != y[0] {
			return x[0] - y[0]
		}
		return x[1] - y[1]
	})
	for _, k := range keys {
		bc := cluster.Items(cells[k])
		slices.SortFunc(bc, geo.Cell.Compare)
		a.Boundaries = append(a.Boundaries, &Boundary{A: k[0], B: k[1], Cells: bc, Chokepoint: -1})
		a.Regions[k[0]].Neighbors = append(a.Regions[k[0]].Neighbors, k[1])
		a.Regions[k[1]].Neighbors = append(a.Regions[k[1]].Neighbors, k[0])
	}
	for _, r := range a.Regions {
		slices.Sort(r.Neighbors)
	}
}

// annotateChokepoints gives every boundary the strongest chokepoint that
// overlaps or touches it.
func annotateChokepoints(a *Analysis) {
	for _, bd := range a.Boundaries {
		on := cluster.SetOf(bd.Cells)
		// chokepoints are ordered strongest first
		for _, cp := range a.Chokepoints {
			if touches(cp.Cells, on) {
				bd.Chokepoint = cp.ID
				break
			}
		}
	}
}

func touches(cells []geo.Cell, set mapset.Set[geo.Cell]) bool {
	for _, c := range cells {
		if set.Has(c) {
			return true
		}
		for _, n := range c.Neighbors8() {
			if set.Has(n) {
				return true
			}
		}
	}
	return false
}

// markPockets turns sites the opponent can only reach through our main into
// pocket expansions.
func (b *Builder) markPockets(a *Analysis, enemyStart geo.Point, log zerolog.Logger) {
	main, ok := a.ExpandOfType(ExpandMain)
	if !ok {
		return
	}
	mainRegion, ok := a.RegionAt(main.Position.Cell())
	if !ok {
		return
	}
	enemyRegion, ok := a.RegionAt(enemyStart.Cell())
	if !ok {
		return
	}

	rp := NewPathfinder(a, b.opts.Paths, log)
	for _, e := range a.Expands {
		if e == main {
			continue
		}
		r, ok := a.RegionAt(e.Position.Cell())
		if !ok || r.ID == mainRegion.ID {
			continue
		}
		path, ok := rp.FindPath(enemyRegion.ID, r.ID)
		if ok && len(path) > 2 && slices.Contains(path[1:len(path)-1], mainRegion.ID) {
			e.Type = ExpandPocket
		}
	}
}
