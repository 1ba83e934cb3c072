package db

import (
	"fmt"

	"gorm.io/gorm"

	"usermgmt/internal/model"
)

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
