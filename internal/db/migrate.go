package db

import (
	"fmt"

	"github.com/polydev-ai/quotaengine/internal/models"
	"gorm.io/gorm"
)

// Migrate runs schema migrations for all engine tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.PerspectiveQuota{},
		&models.BonusQuota{},
		&models.UserCredits{},
		&models.PerspectiveUsage{},
		&models.MonthlyUsageSummary{},
		&models.ModelTier{},
		&models.TierLimit{},
		&models.Setting{},
	)
}
