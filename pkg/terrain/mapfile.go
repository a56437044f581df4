package terrain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/freeeve/terrainkit/pkg/geo"
)

// MapFile is the YAML description of a map: its layout, neutral units and
// the two start locations.
type MapFile struct {
	Name   string `yaml:"name"`
	Layout string `yaml:"layout"`
	Units  []Unit `yaml:"units"`
	Starts struct {
		Self  geo.Point `yaml:"self"`
		Enemy geo.Point `yaml:"enemy"`
	} `yaml:"starts"`
}

// LoadFile reads a map description from a YAML file.
func LoadFile(path string) (*MapFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map file: %w", err)
	}
	return ParseMapFile(data)
}

// ParseMapFile decodes a YAML map description.
func ParseMapFile(data []byte) (*MapFile, error) {
	var mf MapFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parsing map YAML: %w", err)
	}
	if mf.Name == "" {
		return nil, fmt.Errorf("map file has no name")
	}
	return &mf, nil
}

// Grid builds the terrain grid and registers every destructible as an
// obstruction.
func (mf *MapFile) Grid() (*Grid, error) {
	g, err := ParseLayoutString(mf.Layout)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", mf.Name, err)
	}
	for _, u := range Destructibles(mf.Units) {
		g.AddObstruction(u.Tag, u.Footprint())
	}
	return g, nil
}

// Identity is the persistence key of the map: its name plus a digest of the
// layout, so an edited layout never reuses stale analysis.
func (mf *MapFile) Identity() string {
	sum := sha256.Sum256([]byte(mf.Layout))
	return mf.Name + "-" + hex.EncodeToString(sum[:6])
}
