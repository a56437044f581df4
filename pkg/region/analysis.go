package region

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/freeeve/terrainkit/pkg/choke"
	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

var (
	// ErrAnalysisFailed is wrapped by AnalysisError.
	ErrAnalysisFailed = errors.New("region: map analysis failed")
	// ErrInvalidSnapshot indicates a snapshot that does not fit the map.
	ErrInvalidSnapshot = errors.New("region: invalid snapshot")
)

// AnalysisError reports that fewer town hall sites were found than resource
// fields. The analysis is unusable for the map, but the caller decides
// whether that is fatal.
type AnalysisError struct {
	Fields  int
	Expands int
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%v: %d resource fields but %d expansion sites", ErrAnalysisFailed, e.Fields, e.Expands)
}

func (e *AnalysisError) Unwrap() error {
	return ErrAnalysisFailed
}

// obstructionRemover is implemented by terrain models that track
// destructible obstructions, such as terrain.Grid.
type obstructionRemover interface {
	RemoveObstruction(tag uint64) bool
}

// Analysis is the region decomposition of one map. Downstream consumers
// treat it as read-only; only OnUnitDestroyed mutates it.
type Analysis struct {
	RunID       string
	Regions     []*Region
	Boundaries  []*Boundary
	Ramps       []Ramp
	Expands     []*ExpandLocation
	Chokepoints []choke.Chokepoint

	model      terrain.Model
	regionOf   map[geo.Cell]int
	boundaries map[pairKey]*Boundary
}

// Model returns the terrain the analysis was built over.
func (a *Analysis) Model() terrain.Model {
	return a.model
}

// Region returns the region with the given ID, or nil.
func (a *Analysis) Region(id int) *Region {
	if id < 0 || id >= len(a.Regions) {
		return nil
	}
	return a.Regions[id]
}

// RegionAt returns the region containing c.
func (a *Analysis) RegionAt(c geo.Cell) (*Region, bool) {
	id, ok := a.regionOf[c]
	if !ok {
		return nil, false
	}
	return a.Regions[id], true
}

// Boundary returns the boundary between two neighboring regions.
func (a *Analysis) Boundary(x, y int) (*Boundary, bool) {
	b, ok := a.boundaries[keyOf(x, y)]
	return b, ok
}

// RegionsOfType lists the regions of type t in ID order.
func (a *Analysis) RegionsOfType(t Type) []*Region {
	var out []*Region
	for _, r := range a.Regions {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// ExpandOfType returns the first expansion site of type t.
func (a *Analysis) ExpandOfType(t ExpandType) (*ExpandLocation, bool) {
	for _, e := range a.Expands {
		if e.Type == t {
			return e, true
		}
	}
	return nil, false
}

// OnUnitDestroyed removes a destroyed neutral unit from the expansion sites
// and from the terrain model, then refreshes region obstruction flags. It
// reports whether anything changed; when it did, cached paths are stale.
func (a *Analysis) OnUnitDestroyed(tag uint64) bool {
	changed := false
	for _, e := range a.Expands {
		if e.OnUnitDestroyed(tag) {
			changed = true
		}
	}
	if rm, ok := a.model.(obstructionRemover); ok && rm.RemoveObstruction(tag) {
		changed = true
	}
	if changed {
		a.refreshObstructions()
	}
	return changed
}

// refreshObstructions flags ramps carrying any obstruction and other regions
// where at least half the cells are obstructed.
func (a *Analysis) refreshObstructions() {
	for _, r := range a.Regions {
		n := 0
		for _, c := range r.Cells {
			if a.model.IsObstructed(c) {
				n++
			}
		}
		if r.Type == TypeRamp {
			r.Obstructed = n > 0
		} else {
			r.Obstructed = n > 0 && 2*n >= len(r.Cells)
		}
	}
}

// index rebuilds the cell and boundary lookups from the arena.
func (a *Analysis) index() error {
	a.regionOf = make(map[geo.Cell]int)
	for id, r := range a.Regions {
		if r.ID != id {
			return fmt.Errorf("%w: region at index %d has ID %d", ErrInvalidSnapshot, id, r.ID)
		}
		for _, c := range r.Cells {
			if prev, dup := a.regionOf[c]; dup {
				return fmt.Errorf("%w: cell %v in regions %d and %d", ErrInvalidSnapshot, c, prev, id)
			}
			a.regionOf[c] = id
		}
	}
	a.boundaries = make(map[pairKey]*Boundary, len(a.Boundaries))
	for _, b := range a.Boundaries {
		if a.Region(b.A) == nil || a.Region(b.B) == nil {
			return fmt.Errorf("%w: boundary %d-%d references a missing region", ErrInvalidSnapshot, b.A, b.B)
		}
		a.boundaries[keyOf(b.A, b.B)] = b
	}
	return nil
}

// Snapshot is the persisted form of an Analysis.
type Snapshot struct {
	RunID       string             `json:"run_id"`
	Regions     []Region           `json:"regions"`
	Boundaries  []Boundary         `json:"boundaries"`
	Ramps       []Ramp             `json:"ramps"`
	Expands     []ExpandLocation   `json:"expands"`
	Chokepoints []choke.Chokepoint `json:"chokepoints"`
}

// Snapshot copies the analysis into its persisted form.
func (a *Analysis) Snapshot() Snapshot {
	s := Snapshot{
		RunID:       a.RunID,
		Ramps:       slices.Clone(a.Ramps),
		Chokepoints: slices.Clone(a.Chokepoints),
	}
	for _, r := range a.Regions {
		s.Regions = append(s.Regions, *r)
	}
	for _, b := range a.Boundaries {
		s.Boundaries = append(s.Boundaries, *b)
	}
	for _, e := range a.Expands {
		cp := *e
		cp.Resources = maps.Clone(e.Resources)
		cp.Blockers = maps.Clone(e.Blockers)
		s.Expands = append(s.Expands, cp)
	}
	return s
}

// Restore rebuilds an Analysis from a snapshot over m. Resources and
// blockers are re-bound by tag against units: anything no longer present
// was destroyed since the snapshot and is dropped.
func Restore(m terrain.Model, s Snapshot, units []terrain.Unit) (*Analysis, error) {
	live := make(map[uint64]terrain.Unit, len(units))
	for _, u := range units {
		live[u.Tag] = u
	}

	a := &Analysis{
		RunID:       s.RunID,
		Ramps:       s.Ramps,
		Chokepoints: s.Chokepoints,
		model:       m,
	}
	for i := range s.Regions {
		r := s.Regions[i]
		for _, c := range r.Cells {
			if !m.IsWalkable(c, false) {
				return nil, fmt.Errorf("%w: region %d cell %v is not walkable", ErrInvalidSnapshot, r.ID, c)
			}
		}
		a.Regions = append(a.Regions, &r)
	}
	for i := range s.Boundaries {
		b := s.Boundaries[i]
		a.Boundaries = append(a.Boundaries, &b)
	}
	for i := range s.Expands {
		e := s.Expands[i]
		e.Resources = rebind(e.Resources, live)
		e.Blockers = rebind(e.Blockers, live)
		a.Expands = append(a.Expands, &e)
	}
	if err := a.index(); err != nil {
		return nil, err
	}
	a.refreshObstructions()
	return a, nil
}

func rebind(set map[uint64]terrain.Unit, live map[uint64]terrain.Unit) map[uint64]terrain.Unit {
	out := make(map[uint64]terrain.Unit, len(set))
	for tag := range set {
		if u, ok := live[tag]; ok {
			out[tag] = u
		}
	}
	return out
}
