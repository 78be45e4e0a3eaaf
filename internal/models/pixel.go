package models

import "time"

// Pixel is the logically current cell value at (frame, x, y). Exactly one row
// exists per coordinate once it has ever been painted; later placements
// supersede it in place via a conditional upsert. Seq is the history row ID of
// the placement that produced this value and is the tie-break when two
// placements share a timestamp: the higher Seq wins.
type Pixel struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	FrameID uint64 `gorm:"not null;uniqueIndex:idx_pixels_frame_coord,priority:1"` // Owning frame.
	X       int    `gorm:"not null;uniqueIndex:idx_pixels_frame_coord,priority:2"` // Column, 0-based.
	Y       int    `gorm:"not null;uniqueIndex:idx_pixels_frame_coord,priority:3"` // Row, 0-based.

	Color       uint32 `gorm:"not null"`                 // ARGB palette value.
	Contributor string `gorm:"type:text;not null;index"` // Handle of the user who placed it.

	PlacedAt time.Time `gorm:"not null;index"` // Server-assigned placement time.
	Seq      uint64    `gorm:"not null"`       // History row ID of the winning placement.
}

// TableName overrides the default table name.
func (Pixel) TableName() string {
	return "pixels"
}

// Pixel history row kinds.
const (
	// HistoryKindPlace records a user placement.
	HistoryKindPlace = "place"
	// HistoryKindRevert records the corrective write emitted by an undo; it
	// restores the coordinate's prior value and is excluded from undo
	// candidacy.
	HistoryKindRevert = "revert"
)

// PixelHistory is the append-only record of every accepted mutation. It is
// the replay source for snapshot materialization and reconstruction tails
// (ordered by placed_at, then id) and the prior-value source for undo. Undo
// never deletes rows; it appends a revert row, so a snapshot cut at any
// watermark stays consistent with its tail.
type PixelHistory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Storage-assigned sequence, the timestamp tie-break.

	FrameID uint64 `gorm:"not null;index:idx_pixel_history_frame_time,priority:1;index:idx_pixel_history_coord,priority:1"` // Owning frame.
	X       int    `gorm:"not null;index:idx_pixel_history_coord,priority:2"`                                               // Column, 0-based.
	Y       int    `gorm:"not null;index:idx_pixel_history_coord,priority:3"`                                               // Row, 0-based.

	Color       uint32 `gorm:"not null"`                 // ARGB palette value after this mutation.
	Contributor string `gorm:"type:text;not null;index"` // Contributor of the resulting value; empty on revert-to-transparent.

	Kind string `gorm:"type:text;not null;default:place"` // place | revert.

	PlacedAt time.Time `gorm:"not null;index:idx_pixel_history_frame_time,priority:2"` // Server-assigned placement time.
}

// TableName overrides the default table name.
func (PixelHistory) TableName() string {
	return "pixel_history"
}
