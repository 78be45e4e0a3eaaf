package models

import "time"

// QuotaCap is the maximum placement allowance per user.
const QuotaCap = 100

// QuotaState tracks a user's remaining placement allowance. Replenishment is
// computed lazily from LastRefill at read time; there is no background timer.
// Consumption happens through a single conditional UPDATE so concurrent
// placements by one user can never both spend the same unit.
type QuotaState struct {
	UserHandle string `gorm:"primaryKey;type:text"` // Owning user handle.

	Available  int       `gorm:"not null;default:100"` // Units remaining, 0..100.
	LastRefill time.Time `gorm:"not null"`             // Base timestamp for lazy replenishment.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (QuotaState) TableName() string {
	return "quota_states"
}
