package tile_test

import (
	"testing"

	"github.com/pronitdas/planetiler/tile"
)

func TestFromXYZDecodeRoundTrip(t *testing.T) {
	cases := []struct{ x, y, z int }{
		{0, 0, 0},
		{1, 1, 1},
		{0, 0, 14},
		{16383, 16383, 14},
		{3, 5, 8},
		{7, 0, 7},
		{0, 127, 7},
	}
	for _, c := range cases {
		coord := tile.FromXYZ(c.x, c.y, c.z)
		decoded := tile.Decode(coord.Encoded())
		if decoded.X() != c.x || decoded.Y() != c.y || decoded.Z() != c.z {
			t.Errorf("FromXYZ(%d,%d,%d) round-trip = (%d,%d,%d)", c.x, c.y, c.z, decoded.X(), decoded.Y(), decoded.Z())
		}
	}
}

func TestCompareOrdersByZoomThenXThenComplementedY(t *testing.T) {
	// Lower zoom must always sort before higher zoom.
	low := tile.FromXYZ(100, 100, 5)
	high := tile.FromXYZ(0, 0, 6)
	if !low.Less(high) {
		t.Errorf("expected z5 tile to sort before z6 tile")
	}

	// Within a zoom, ascending x sorts first.
	a := tile.FromXYZ(1, 0, 8)
	b := tile.FromXYZ(2, 0, 8)
	if !a.Less(b) {
		t.Errorf("expected smaller x to sort first within a zoom")
	}

	// Within a zoom and x, larger y (smaller complemented y) sorts first.
	c := tile.FromXYZ(1, 5, 8)
	d := tile.FromXYZ(1, 2, 8)
	if !c.Less(d) {
		t.Errorf("expected larger y to sort before smaller y within (zoom, x)")
	}

	if a.Compare(a) != 0 {
		t.Errorf("expected Compare to be reflexive")
	}
}

func TestFromXYZWrapsXModuloAndClampsY(t *testing.T) {
	z := 4
	max := 1 << z

	wrapped := tile.FromXYZ(max+3, 0, z)
	if wrapped.X() != 3 {
		t.Errorf("expected x to wrap modulo 2^z, got %d", wrapped.X())
	}

	negative := tile.FromXYZ(-1, 0, z)
	if negative.X() != max-1 {
		t.Errorf("expected negative x to wrap into range, got %d", negative.X())
	}

	clampedHigh := tile.FromXYZ(0, max+10, z)
	if clampedHigh.Y() != max-1 {
		t.Errorf("expected y to clamp to max-1, got %d", clampedHigh.Y())
	}

	clampedLow := tile.FromXYZ(0, -10, z)
	if clampedLow.Y() != 0 {
		t.Errorf("expected negative y to clamp to 0, got %d", clampedLow.Y())
	}
}

func TestIDValid(t *testing.T) {
	if !(tile.ID{X: 0, Y: 0, Z: 0}).Valid() {
		t.Errorf("expected (0,0,0) to be valid")
	}
	if (tile.ID{X: 1, Y: 0, Z: 0}).Valid() {
		t.Errorf("expected x=1 at z=0 to be invalid")
	}
	if (tile.ID{X: 0, Y: 0, Z: 15}).Valid() {
		t.Errorf("expected z=15 to be invalid")
	}
}
