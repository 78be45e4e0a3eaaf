package palette

import "testing"

func TestValidColorAcceptsEveryPaletteEntry(t *testing.T) {
	for _, c := range Colors {
		if !ValidColor(c) {
			t.Fatalf("palette entry 0x%08X rejected", c)
		}
	}
}

func TestValidColorRejectsNonPaletteValues(t *testing.T) {
	for _, c := range []uint32{0x00000001, 0xFFBE0038, 0x00BE0039, 0x12345678, 0xFFFFFFFE} {
		if ValidColor(c) {
			t.Fatalf("non-palette value 0x%08X accepted", c)
		}
	}
}

func TestPaletteHasExactly32DistinctEntries(t *testing.T) {
	seen := map[uint32]struct{}{}
	for _, c := range Colors {
		seen[c] = struct{}{}
	}
	if len(seen) != 32 {
		t.Fatalf("expected 32 distinct entries, got %d", len(seen))
	}
}

func TestValidCoordinates(t *testing.T) {
	cases := []struct {
		x, y, w, h int
		want       bool
	}{
		{0, 0, 128, 72, true},
		{127, 71, 128, 72, true},
		{128, 0, 128, 72, false},
		{0, 72, 128, 72, false},
		{-1, 0, 128, 72, false},
		{0, -1, 128, 72, false},
		{511, 287, 512, 288, true},
	}
	for _, tc := range cases {
		if got := ValidCoordinates(tc.x, tc.y, tc.w, tc.h); got != tc.want {
			t.Fatalf("ValidCoordinates(%d, %d, %d, %d) = %v, want %v", tc.x, tc.y, tc.w, tc.h, got, tc.want)
		}
	}
}
