// Package realtime fans placement and frame-state events out to every live
// viewer of a frame. Delivery is best-effort: every event is a self-contained
// state fact, and clients re-run snapshot reconstruction after any suspected
// gap instead of relying on ordered delivery.
package realtime

import "time"

// EventType identifies a broadcast variant.
type EventType string

// Broadcast event variants.
const (
	// EventPixel carries the full resulting pixel tuple after a placement or undo.
	EventPixel EventType = "pixel"
	// EventFreeze announces a change of the frozen flag.
	EventFreeze EventType = "freeze"
	// EventUpdateTitle announces a title or description change.
	EventUpdateTitle EventType = "updateTitle"
	// EventUpdatePermissions announces a permission mode change.
	EventUpdatePermissions EventType = "updatePermissions"
	// EventDelete announces frame deletion; subscribers should disconnect.
	EventDelete EventType = "delete"
)

// PixelFact is the complete state of one coordinate after an accepted
// mutation. It is always the full tuple, never a delta, so applying it out of
// order or twice is harmless.
type PixelFact struct {
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Color       uint32    `json:"color"`
	Contributor string    `json:"contributor"`
	PlacedAt    time.Time `json:"placedAt"`
	Seq         uint64    `json:"seq"`
}

// Event is one broadcast message scoped to a frame.
type Event struct {
	Type    EventType `json:"type"`
	FrameID uint64    `json:"frameId"`

	Pixel *PixelFact `json:"pixel,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Permission  string `json:"permission,omitempty"`
	Frozen      *bool  `json:"frozen,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
