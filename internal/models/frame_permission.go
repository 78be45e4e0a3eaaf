package models

import "time"

// Permission record types. A record moves none → pending → contributor or
// blocked; pending is entered by the user's own access request, the final
// transition is an owner action.
const (
	// PermissionTypeContributor marks a user approved to edit.
	PermissionTypeContributor = "contributor"
	// PermissionTypeBlocked marks a user barred from editing.
	PermissionTypeBlocked = "blocked"
	// PermissionTypePending marks an unresolved access request.
	PermissionTypePending = "pending"
)

// FramePermission is a per-(frame, user) access record. Absence means
// "implicitly allowed" on open frames and "not yet allowed" on
// approval-required ones.
type FramePermission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	FrameID    uint64 `gorm:"not null;uniqueIndex:idx_frame_permissions_frame_user,priority:1"`           // Owning frame.
	UserHandle string `gorm:"type:text;not null;uniqueIndex:idx_frame_permissions_frame_user,priority:2"` // Subject user handle.

	Type      string `gorm:"type:text;not null"` // contributor | blocked | pending.
	GrantedBy string `gorm:"type:text"`          // Handle of the user who set the current type.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (FramePermission) TableName() string {
	return "frame_permissions"
}
