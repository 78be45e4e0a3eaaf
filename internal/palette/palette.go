// Package palette defines the fixed 32-entry ARGB color table shared by
// placement validation and snapshot decoding. Any change to the table is a
// breaking format change.
package palette

// Transparent is the erased/empty sentinel. It counts as one of the 32
// palette entries so an undo with no prior value can still emit a valid color.
const Transparent uint32 = 0x00000000

// Colors lists every placeable ARGB value, transparent first.
var Colors = [32]uint32{
	Transparent,
	0xFFBE0039, 0xFFFF4500, 0xFFFFA800, 0xFFFFD635,
	0xFF00A368, 0xFF00CC78, 0xFF7EED56, 0xFF00756F,
	0xFF009EAF, 0xFF00CCC0, 0xFF2450A4, 0xFF3690EA,
	0xFF51E9F4, 0xFF493AC1, 0xFF6A5CFF, 0xFF94B3FF,
	0xFF811E9F, 0xFFB44AC0, 0xFFE4ABFF, 0xFFDE107F,
	0xFFFF3881, 0xFFFF99AA, 0xFF6D482F, 0xFF9C6926,
	0xFFFFB470, 0xFF000000, 0xFF515252, 0xFF898D90,
	0xFFD4D7D9, 0xFFFFFFFF, 0xFF6D001A,
}

var colorSet = func() map[uint32]struct{} {
	set := make(map[uint32]struct{}, len(Colors))
	for _, c := range Colors {
		set[c] = struct{}{}
	}
	return set
}()

// ValidColor reports whether argb exactly matches a palette entry.
func ValidColor(argb uint32) bool {
	_, ok := colorSet[argb]
	return ok
}

// ValidCoordinates reports whether (x, y) lies inside a width×height frame.
func ValidCoordinates(x, y, width, height int) bool {
	return x >= 0 && x < width && y >= 0 && y < height
}
