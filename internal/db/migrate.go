package db

import (
	"fmt"

	"github.com/pixelframe/pixelframe/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for every table the service owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Frame{},
		&models.Pixel{},
		&models.PixelHistory{},
		&models.Snapshot{},
		&models.QuotaState{},
		&models.FramePermission{},
	)
}
