package models

import "time"

// Snapshot is an immutable compacted capture of a frame's full grid. The blob
// is a zstd-compressed little-endian ARGB dump of width×height cells. CutoffAt
// plus CutoffSeq form the watermark of the newest history row included;
// reconstruction replays strictly-after rows on top. CutoffAt is monotonically
// non-decreasing across snapshots of the same frame.
type Snapshot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	FrameID    uint64 `gorm:"not null;index:idx_snapshots_frame_cutoff,priority:1"` // Owning frame.
	ArtifactID string `gorm:"type:text;not null;uniqueIndex"`                       // UUID naming the blob.

	Data []byte `gorm:"not null"` // Compressed grid bytes.

	CutoffAt  time.Time `gorm:"not null;index:idx_snapshots_frame_cutoff,priority:2"` // PlacedAt of the newest included row.
	CutoffSeq uint64    `gorm:"not null"`                                             // History row ID of the newest included row.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Compaction timestamp.
}

// TableName overrides the default table name.
func (Snapshot) TableName() string {
	return "snapshots"
}
