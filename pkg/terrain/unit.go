package terrain

import (
	"fmt"

	"github.com/freeeve/terrainkit/pkg/geo"
)

// UnitKind classifies the neutral units the analysis cares about.
type UnitKind string

const (
	Mineral      UnitKind = "mineral"
	GoldMineral  UnitKind = "gold_mineral"
	Geyser       UnitKind = "geyser"
	Destructible UnitKind = "destructible" // rocks and debris that block terrain until destroyed
)

// Unit is a neutral map unit: a resource or a destructible obstacle.
type Unit struct {
	Tag    uint64    `json:"tag" yaml:"tag"`
	Kind   UnitKind  `json:"kind" yaml:"kind"`
	Pos    geo.Point `json:"pos" yaml:"pos"`
	Width  int       `json:"width,omitempty" yaml:"width,omitempty"`
	Height int       `json:"height,omitempty" yaml:"height,omitempty"`
}

// IsResource reports whether u can be harvested.
func (u Unit) IsResource() bool {
	return u.Kind == Mineral || u.Kind == GoldMineral || u.Kind == Geyser
}

// Size returns the footprint dimensions, falling back to the defaults for
// the unit kind.
func (u Unit) Size() (int, int) {
	if u.Width > 0 && u.Height > 0 {
		return u.Width, u.Height
	}
	switch u.Kind {
	case Mineral, GoldMineral:
		return 2, 1
	case Geyser:
		return 3, 3
	default:
		return 2, 2
	}
}

// Footprint returns the cells the unit covers.
func (u Unit) Footprint() []geo.Cell {
	w, h := u.Size()
	return Footprint(u.Pos, w, h)
}

func (u Unit) String() string {
	return fmt.Sprintf("%s#%d@%v", u.Kind, u.Tag, u.Pos)
}

// Resources filters units down to harvestable ones.
func Resources(units []Unit) []Unit {
	var out []Unit
	for _, u := range units {
		if u.IsResource() {
			out = append(out, u)
		}
	}
	return out
}

// Destructibles filters units down to destructible obstacles.
func Destructibles(units []Unit) []Unit {
	var out []Unit
	for _, u := range units {
		if u.Kind == Destructible {
			out = append(out, u)
		}
	}
	return out
}
