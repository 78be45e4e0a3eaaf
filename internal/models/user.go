package models

import "time"

// User is a registered account. The handle is the identity every other table
// references; authentication here is a thin session layer, not an identity
// provider integration.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Handle string `gorm:"type:text;not null;uniqueIndex"` // Login and display handle.
	Email  string `gorm:"type:text"`                      // Optional contact address.

	Password string `gorm:"type:text;not null"` // bcrypt hash.

	Disabled bool `gorm:"not null;default:false"` // Blocks login when set.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (User) TableName() string {
	return "users"
}
