package models

import "time"

// TierLimit is the per-plan quota limit configuration, keyed by plan tier.
// Admin-editable; consulted on plan changes and provisioning.
type TierLimit struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PlanTier string `gorm:"type:text;not null;uniqueIndex"` // Plan tier key.

	MessagesPerMonth *int64 `gorm:""` // Monthly message limit, nil = unlimited.

	PremiumPerspectivesLimit int64 `gorm:"not null;default:0"` // Premium tier monthly limit.
	NormalPerspectivesLimit  int64 `gorm:"not null;default:0"` // Normal tier monthly limit.
	EcoPerspectivesLimit     int64 `gorm:"not null;default:0"` // Eco tier monthly limit.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (TierLimit) TableName() string {
	return "admin_tier_limits"
}
