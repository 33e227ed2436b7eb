package tile

import (
	"fmt"
	"math"
)

// Coord is a packed (z, x, y) triple used by the assembly pipeline to order
// tiles and detect duplicates cheaply. Its 32-bit encoding is monotonic in
// zoom: the four zoom bits are remapped so that comparing two encodings as
// plain signed int32s yields ascending zoom order, then ascending x, then
// descending y (y is stored complemented) within a zoom.
//
// z occupies bits 28-31 (remapped: z<8 -> 8..15, z>=8 -> 0..6), x occupies
// bits 14-27, and y is stored as (2^z - 1 - y) in bits 0-13.
type Coord struct {
	encoded int32
	x, y, z int
}

const xyMask = (1 << 14) - 1

// MaxZoom is the highest zoom level this coordinate encoding supports.
const MaxZoom = 14

// FromXYZ builds a Coord from raw tile coordinates, wrapping x modulo 2^z and
// clamping y to [0, 2^z).
func FromXYZ(x, y, z int) Coord {
	max := 1 << uint(z)
	x %= max
	if x < 0 {
		x += max
	}
	if y < 0 {
		y = 0
	}
	if y >= max {
		y = max - 1
	}
	zz := z
	if zz < 8 {
		zz += 8
	} else {
		zz -= 8
	}
	yComplement := max - 1 - y
	encoded := int32(zz)<<28 | int32(x)<<14 | int32(yComplement)
	return Coord{encoded: encoded, x: x, y: y, z: z}
}

// Decode reconstructs a Coord from its packed encoding.
func Decode(encoded int32) Coord {
	z := int(encoded>>28) + 8
	x := int((encoded >> 14) & xyMask)
	max := 1 << uint(z)
	y := (max - 1) - int(encoded&xyMask)
	return Coord{encoded: encoded, x: x, y: y, z: z}
}

func (c Coord) X() int { return c.x }
func (c Coord) Y() int { return c.y }
func (c Coord) Z() int { return c.z }

// Encoded returns the packed int32 representation used for comparisons.
func (c Coord) Encoded() int32 { return c.encoded }

// Compare returns -1, 0 or 1 following the ordering described on Coord.
func (c Coord) Compare(other Coord) int {
	switch {
	case c.encoded < other.encoded:
		return -1
	case c.encoded > other.encoded:
		return 1
	default:
		return 0
	}
}

// Less reports whether c sorts strictly before other.
func (c Coord) Less(other Coord) bool { return c.encoded < other.encoded }

// ID converts to the archive-facing tile.ID representation.
func (c Coord) ID() ID { return ID{X: uint32(c.x), Y: uint32(c.y), Z: uint32(c.z)} }

// FromID converts an archive-facing tile.ID back into a Coord.
func FromID(id ID) Coord { return FromXYZ(int(id.X), int(id.Y), int(id.Z)) }

func (c Coord) String() string {
	return fmt.Sprintf("{x=%d y=%d z=%d}", c.x, c.y, c.z)
}

// LonLat returns the geographic coordinate of the tile's top-left (northwest)
// corner in Web Mercator, in degrees.
func (c Coord) LonLat() (lon, lat float64) {
	n := math.Exp2(float64(c.z))
	lon = float64(c.x)/n*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(c.y)/n)))
	lat = latRad * 180.0 / math.Pi
	return lon, lat
}

// DebugURL returns an OpenStreetMap deep link centered on the tile's
// northwest corner, with coordinates rounded to 5 fractional digits.
func (c Coord) DebugURL() string {
	lon, lat := c.LonLat()
	return fmt.Sprintf("https://www.openstreetmap.org/#map=%d/%.5f/%.5f", c.z, lat, lon)
}
