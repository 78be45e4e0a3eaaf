// Package snapshot compacts a frame's full pixel grid into a compressed
// artifact and reconstructs current state as snapshot + tail.
package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Shared codec instances; EncodeAll/DecodeAll are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// EncodeGrid compresses a width×height ARGB grid. Cells are serialized
// little-endian in row-major order; transparent cells are zero.
func EncodeGrid(grid []uint32) []byte {
	raw := make([]byte, len(grid)*4)
	for i, c := range grid {
		binary.LittleEndian.PutUint32(raw[i*4:], c)
	}
	return zstdEncoder.EncodeAll(raw, nil)
}

// DecodeGrid decompresses snapshot bytes back into a width×height grid.
func DecodeGrid(data []byte, width, height int) ([]uint32, error) {
	raw, errDecode := zstdDecoder.DecodeAll(data, nil)
	if errDecode != nil {
		return nil, fmt.Errorf("snapshot: decompress: %w", errDecode)
	}
	want := width * height * 4
	if len(raw) != want {
		return nil, fmt.Errorf("snapshot: grid size mismatch: got %d bytes, want %d", len(raw), want)
	}
	grid := make([]uint32, width*height)
	for i := range grid {
		grid[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return grid, nil
}
