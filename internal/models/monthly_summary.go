package models

import "time"

// MonthlyUsageSummary aggregates a user's metered usage for one calendar
// month. Upserted incrementally after every deduction; month_year uses the
// "YYYY-MM" key format.
type MonthlyUsageSummary struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    string `gorm:"type:text;not null;uniqueIndex:idx_summary_user_month"`       // Owning user ID.
	MonthYear string `gorm:"type:varchar(7);not null;uniqueIndex:idx_summary_user_month"` // Month key, "YYYY-MM".
	PlanTier  string `gorm:"type:text;not null;default:'free'"`                           // Plan tier at time of writing.

	TotalMessages int64 `gorm:"not null;default:0"` // Messages metered this month.

	PremiumPerspectivesUsed int64 `gorm:"not null;default:0"` // Premium perspective count.
	NormalPerspectivesUsed  int64 `gorm:"not null;default:0"` // Normal perspective count.
	EcoPerspectivesUsed     int64 `gorm:"not null;default:0"` // Eco perspective count.

	PremiumCost        float64 `gorm:"type:decimal(20,10);not null;default:0"` // Premium tier cost.
	NormalCost         float64 `gorm:"type:decimal(20,10);not null;default:0"` // Normal tier cost.
	EcoCost            float64 `gorm:"type:decimal(20,10);not null;default:0"` // Eco tier cost.
	TotalEstimatedCost float64 `gorm:"type:decimal(20,10);not null;default:0"` // Total estimated cost.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (MonthlyUsageSummary) TableName() string {
	return "monthly_usage_summary"
}
