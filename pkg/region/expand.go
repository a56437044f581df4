package region

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/rs/zerolog"

	"github.com/freeeve/terrainkit/pkg/cluster"
	"github.com/freeeve/terrainkit/pkg/geo"
	"github.com/freeeve/terrainkit/pkg/terrain"
)

// ExpandType ranks an expansion site relative to the two start locations.
type ExpandType int

const (
	ExpandFar ExpandType = iota
	ExpandMain
	ExpandNatural
	ExpandThird
	ExpandFourth
	ExpandFifth
	ExpandGold
	ExpandPocket
)

var expandTypeNames = [...]string{"far", "main", "natural", "third", "fourth", "fifth", "gold", "pocket"}

func (t ExpandType) String() string {
	if int(t) < len(expandTypeNames) {
		return expandTypeNames[t]
	}
	return fmt.Sprintf("expand_type(%d)", int(t))
}

func (t ExpandType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ExpandType) UnmarshalText(b []byte) error {
	for i, name := range expandTypeNames {
		if name == string(b) {
			*t = ExpandType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown expand type %q", b)
}

// TownHallSize is the footprint edge of a base building.
const TownHallSize = 5

// minResourceGap is the closest a resource cell may sit to a town hall cell.
var minResourceGap = math.Sqrt(1*1 + 3*3)

// ExpandLocation is a base site tied to one resource cluster.
type ExpandLocation struct {
	Position  geo.Point               `json:"position"`
	Type      ExpandType              `json:"type"`
	Resources map[uint64]terrain.Unit `json:"resources"`
	Blockers  map[uint64]terrain.Unit `json:"blockers"`
	// Ground distance from each start location, -1 when unreachable.
	SelfDistance  float64 `json:"self_distance"`
	EnemyDistance float64 `json:"enemy_distance"`
}

// OnUnitDestroyed drops the unit from the resource and blocker sets and
// reports whether it was tracked.
func (e *ExpandLocation) OnUnitDestroyed(tag uint64) bool {
	_, res := e.Resources[tag]
	_, blk := e.Blockers[tag]
	delete(e.Resources, tag)
	delete(e.Blockers, tag)
	return res || blk
}

// IsBlocked reports whether destructibles still cover the site.
func (e *ExpandLocation) IsBlocked() bool {
	return len(e.Blockers) > 0
}

func (e *ExpandLocation) hasGold() bool {
	for _, r := range e.Resources {
		if r.Kind == terrain.GoldMineral {
			return true
		}
	}
	return false
}

// ExpandOptions tunes expansion-site search.
type ExpandOptions struct {
	// ResourceEpsilon is the DBSCAN radius grouping resources into one field.
	ResourceEpsilon float64 `yaml:"resource_epsilon"`
	// SearchRadius is the half-width of the grid searched for a town hall
	// around each field.
	SearchRadius int `yaml:"search_radius"`
	// MinFullResources is the resource count of a full base. Smaller fields
	// rank after full ones.
	MinFullResources int `yaml:"min_full_resources"`
	// BlockerMargin inflates the town hall footprint when collecting
	// destructibles that block the site.
	BlockerMargin int `yaml:"blocker_margin"`
}

// DefaultExpandOptions returns the tuning used when nothing else is
// configured.
func DefaultExpandOptions() ExpandOptions {
	return ExpandOptions{ResourceEpsilon: 8, SearchRadius: 10, MinFullResources: 6, BlockerMargin: 1}
}

// ExpandFinder places a town hall next to every resource field.
type ExpandFinder struct {
	model  terrain.Model
	opts   ExpandOptions
	logger zerolog.Logger
}

// NewExpandFinder creates an ExpandFinder over m.
func NewExpandFinder(m terrain.Model, opts ExpandOptions, logger zerolog.Logger) *ExpandFinder {
	return &ExpandFinder{model: m, opts: opts, logger: logger}
}

func unitDist(a, b terrain.Unit) float64 { return a.Pos.Dist(b.Pos) }

// Find clusters the resources among units and returns one ExpandLocation per
// field a town hall fits next to, along with the number of fields found.
// Fields without a valid site are skipped, so the two counts differ when
// placement failed somewhere.
func (f *ExpandFinder) Find(units []terrain.Unit) ([]*ExpandLocation, int) {
	fields, _ := cluster.DBSCAN(terrain.Resources(units), f.opts.ResourceEpsilon, 1, unitDist)
	destructibles := terrain.Destructibles(units)

	var out []*ExpandLocation
	for _, field := range fields {
		pos, ok := f.place(field)
		if !ok {
			f.logger.Warn().Int("resources", len(field)).Msg("No town hall site for resource field")
			continue
		}
		e := &ExpandLocation{
			Position:  pos,
			Resources: make(map[uint64]terrain.Unit, len(field)),
			Blockers:  make(map[uint64]terrain.Unit),
		}
		for _, r := range field {
			e.Resources[r.Tag] = r
		}
		inflated := cluster.SetOf(terrain.Footprint(pos, TownHallSize+2*f.opts.BlockerMargin, TownHallSize+2*f.opts.BlockerMargin))
		for _, d := range destructibles {
			for _, c := range d.Footprint() {
				if inflated.Has(c) {
					e.Blockers[d.Tag] = d
					break
				}
			}
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *ExpandLocation) int {
		if r := cmp.Compare(a.Position.Y, b.Position.Y); r != 0 {
			return r
		}
		return cmp.Compare(a.Position.X, b.Position.X)
	})
	f.logger.Info().Int("fields", len(fields)).Int("expands", len(out)).Msg("Expansions found")
	return out, len(fields)
}

// place searches around the field for the placeable town hall center with
// the smallest summed distance to the field's resources.
func (f *ExpandFinder) place(field []terrain.Unit) (geo.Point, bool) {
	positions := make([]geo.Point, len(field))
	var resourceCells []geo.Cell
	for i, r := range field {
		positions[i] = r.Pos
		resourceCells = append(resourceCells, r.Footprint()...)
	}
	center, err := geo.BoundingBoxCenter(positions)
	if err != nil {
		return geo.Point{}, false
	}

	var best geo.Point
	bestSum := math.Inf(1)
	for _, c := range f.model.SearchGrid(center, f.opts.SearchRadius) {
		pos := c.Center()
		if !f.model.CanPlace(pos, TownHallSize, false) || !clearOf(pos, resourceCells) {
			continue
		}
		var sum float64
		for _, p := range positions {
			sum += pos.Dist(p)
		}
		if sum < bestSum {
			best, bestSum = pos, sum
		}
	}
	return best, !math.IsInf(bestSum, 1)
}

func clearOf(pos geo.Point, resourceCells []geo.Cell) bool {
	for _, h := range terrain.Footprint(pos, TownHallSize, TownHallSize) {
		for _, r := range resourceCells {
			if h.Dist(r) < minResourceGap-1e-9 {
				return false
			}
		}
	}
	return true
}

// DistanceFunc returns the ground distance between two points, or false
// when they are not connected.
type DistanceFunc func(from, to geo.Point) (float64, bool)

// Classify assigns expand types. The site nearest our start is the main.
// Sites closer to us than to the opponent become natural, third, fourth and
// fifth by ground distance, full bases before depleted ones; everything else
// is far. Gold fields override the rank of non-main sites.
func (f *ExpandFinder) Classify(expands []*ExpandLocation, self, enemy geo.Point, dist DistanceFunc) {
	if len(expands) == 0 {
		return
	}
	ground := func(from, to geo.Point) float64 {
		if d, ok := dist(from, to); ok {
			return d
		}
		return math.Inf(1)
	}

	main := 0
	selfD := make([]float64, len(expands))
	enemyD := make([]float64, len(expands))
	for i, e := range expands {
		selfD[i], enemyD[i] = ground(self, e.Position), ground(enemy, e.Position)
		e.SelfDistance, e.EnemyDistance = finite(selfD[i]), finite(enemyD[i])
		e.Type = ExpandFar
		if e.Position.Dist(self) < expands[main].Position.Dist(self) {
			main = i
		}
	}
	expands[main].Type = ExpandMain

	var ours []*ExpandLocation
	for i, e := range expands {
		if i != main && selfD[i] < enemyD[i] {
			ours = append(ours, e)
		}
	}
	slices.SortStableFunc(ours, func(a, b *ExpandLocation) int {
		aFull, bFull := len(a.Resources) >= f.opts.MinFullResources, len(b.Resources) >= f.opts.MinFullResources
		if aFull != bFull {
			if aFull {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.SelfDistance, b.SelfDistance)
	})
	ranks := []ExpandType{ExpandNatural, ExpandThird, ExpandFourth, ExpandFifth}
	for i, e := range ours {
		if i < len(ranks) {
			e.Type = ranks[i]
		}
	}

	for i, e := range expands {
		if i != main && e.hasGold() {
			e.Type = ExpandGold
		}
	}
}

func finite(d float64) float64 {
	if math.IsInf(d, 0) {
		return -1
	}
	return d
}
