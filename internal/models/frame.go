package models

import (
	"time"

	"gorm.io/datatypes"
)

// Frame permission modes.
const (
	// PermissionOpen allows anyone not blocked to edit.
	PermissionOpen = "open"
	// PermissionApprovalRequired restricts edits to approved contributors.
	PermissionApprovalRequired = "approval-required"
	// PermissionOwnerOnly restricts both viewing and editing to the owner.
	PermissionOwnerOnly = "owner-only"
)

// FramePreset describes an allowed canvas size.
type FramePreset struct {
	Width  int
	Height int
}

// FramePresets lists the only canvas sizes a frame may be created with.
var FramePresets = []FramePreset{
	{Width: 128, Height: 72},
	{Width: 72, Height: 128},
	{Width: 128, Height: 128},
	{Width: 512, Height: 288},
}

// ValidFrameSize reports whether width×height matches a preset.
func ValidFrameSize(width, height int) bool {
	for _, p := range FramePresets {
		if p.Width == width && p.Height == height {
			return true
		}
	}
	return false
}

// Frame is a named fixed-size shared canvas. Width and height never change
// after creation; a frozen frame accepts no pixel mutations from anyone.
type Frame struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OwnerHandle string `gorm:"type:text;not null;index;uniqueIndex:idx_frames_owner_slug,priority:1"` // Owning user handle.
	Slug        string `gorm:"type:text;not null;uniqueIndex:idx_frames_owner_slug,priority:2"`       // URL slug, unique per owner.

	Title       string `gorm:"type:text;not null"` // Display title.
	Description string `gorm:"type:text"`          // Optional description.

	Width  int `gorm:"not null"` // Canvas width, fixed at creation.
	Height int `gorm:"not null"` // Canvas height, fixed at creation.

	Permission string `gorm:"type:text;not null;default:open"` // open | approval-required | owner-only.
	Frozen     bool   `gorm:"not null;default:false"`          // Blocks all pixel mutations when set.

	Stats datatypes.JSON `gorm:"type:jsonb"` // Best-effort activity stats payload.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (Frame) TableName() string {
	return "frames"
}

// FrameStats is the JSON payload stored in Frame.Stats.
type FrameStats struct {
	Pixels       int64     `json:"pixels"`       // Total accepted placements still current or superseded.
	Contributors int64     `json:"contributors"` // Distinct contributor handles.
	LastActivity time.Time `json:"lastActivity"` // Timestamp of the latest placement.
}
