// Package fixtures provides a synthetic, self-contained pipeline.Store used
// to exercise the tile assembly pipeline end to end without a real feature
// source: the CLI's generate command and the pipeline's integration tests
// both build one of these instead of reading real geodata.
package fixtures

import (
	"fmt"

	"github.com/pronitdas/planetiler/pipeline"
	"github.com/pronitdas/planetiler/tile"
	"github.com/pronitdas/planetiler/vectortile"
)

// Group is a synthetic pipeline.Group. Two groups with equal Seed build
// byte-identical tiles, which lets callers construct runs of repeated tiles
// to exercise memoization deliberately.
type Group struct {
	coord    tile.Coord
	Seed     int
	Features int
}

// NewGroup builds a single Group at the given tile coordinate, for tests
// that need precise control over individual tiles rather than a full
// pyramid.
func NewGroup(x, y, z, seed, features int) Group {
	return Group{coord: tile.FromXYZ(x, y, z), Seed: seed, Features: features}
}

func (g Group) Coord() tile.Coord { return g.coord }
func (g Group) NumFeaturesToEmit() int      { return g.Features }
func (g Group) NumFeaturesProcessed() int   { return g.Features }

// HasSameContents reports whether other is also a fixtures.Group with an
// equal Seed and Features count.
func (g Group) HasSameContents(other pipeline.Group) bool {
	o, ok := other.(Group)
	return ok && o.Seed == g.Seed && o.Features == g.Features
}

// BuildTile renders Features synthetic point features into a single layer
// named "fixture", with an "n" tag set to Seed on every feature so that
// equal-seed groups always encode identically.
func (g Group) BuildTile() (*vectortile.Tile, error) {
	layer := vectortile.Layer{
		Name:    "fixture",
		Version: 2,
		Extent:  4096,
		Keys:    []string{"n"},
		Values:  []vectortile.Value{vectortile.IntValue(int64(g.Seed))},
	}
	for i := 0; i < g.Features; i++ {
		pos := (i % 4095) + 1
		layer.Features = append(layer.Features, vectortile.Feature{
			ID:    uint64(i + 1),
			HasID: true,
			Type:  vectortile.GeomPoint,
			Tags:  []uint32{0, 0},
			Geometry: []uint32{
				(vectortile.CmdMoveTo | (1 << 3)),
				zigzagEncode(pos), zigzagEncode(pos),
			},
		})
	}
	return &vectortile.Tile{Layers: []vectortile.Layer{layer}}, nil
}

func zigzagEncode(n int) uint32 {
	v := int32(n)
	return uint32((v << 1) ^ (v >> 31))
}

// Store is an in-memory, pre-sorted sequence of Groups covering every tile
// of a synthetic pyramid between two zoom levels.
type Store struct {
	groups   []pipeline.Group
	pos      int
	features int64
}

// NewGridStore builds a Store covering the full pyramid from minZoom to
// maxZoom (inclusive), in ascending tile.Coord order. seed maps a
// coordinate to the content seed its Group should carry; featuresPerTile
// sets every group's feature count.
func NewGridStore(minZoom, maxZoom int, featuresPerTile int, seed func(x, y, z int) int) *Store {
	s := &Store{}
	for z := minZoom; z <= maxZoom; z++ {
		max := 1 << uint(z)
		for x := 0; x < max; x++ {
			for y := max - 1; y >= 0; y-- {
				g := Group{
					coord:    tile.FromXYZ(x, y, z),
					Seed:     seed(x, y, z),
					Features: featuresPerTile,
				}
				s.groups = append(s.groups, g)
				s.features += int64(featuresPerTile)
			}
		}
	}
	return s
}

// NewFromGroups builds a Store directly from a caller-supplied, already
// ordered slice of groups. Used by tests that need precise control over
// batch boundaries and memoization runs.
func NewFromGroups(groups []pipeline.Group) *Store {
	var features int64
	for _, g := range groups {
		features += int64(g.NumFeaturesToEmit())
	}
	return &Store{groups: groups, features: features}
}

// Next implements pipeline.Store.
func (s *Store) Next() (pipeline.Group, bool) {
	if s.pos >= len(s.groups) {
		return nil, false
	}
	g := s.groups[s.pos]
	s.pos++
	return g, true
}

// NumFeatures implements pipeline.Store.
func (s *Store) NumFeatures() int64 { return s.features }

// ConstantSeed always returns the same seed, so every tile in the pyramid
// is byte-identical and memoization kicks in on every tile after the first.
func ConstantSeed(n int) func(x, y, z int) int {
	return func(int, int, int) int { return n }
}

// ZoomSeed derives the seed from zoom alone, so tiles are identical within
// a zoom level but differ across zoom levels.
func ZoomSeed() func(x, y, z int) int {
	return func(x, y, z int) int { return z }
}

// String renders a Group for debug logging.
func (g Group) String() string {
	return fmt.Sprintf("fixtures.Group{%s seed=%d features=%d}", g.coord, g.Seed, g.Features)
}
