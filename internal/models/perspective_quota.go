package models

import "time"

// Plan tier identifiers.
const (
	// PlanFree is the default plan assigned at provisioning.
	PlanFree = "free"
	// PlanPlus is the mid-level paid plan.
	PlanPlus = "plus"
	// PlanPro is the high-volume paid plan.
	PlanPro = "pro"
	// PlanEnterprise is the custom-contract plan.
	PlanEnterprise = "enterprise"
)

// PerspectiveQuota tracks a user's monthly message and per-tier perspective
// counters. One row per user; counters roll over with the UTC calendar month.
type PerspectiveQuota struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID   string `gorm:"type:text;not null;uniqueIndex"`          // Owning user ID.
	PlanTier string `gorm:"type:text;not null;default:'free';index"` // Active plan tier.

	MessagesPerMonth *int64 `gorm:""`                   // Monthly message limit, nil = unlimited.
	MessagesUsed     int64  `gorm:"not null;default:0"` // Messages consumed this month.

	PremiumPerspectivesLimit int64 `gorm:"not null;default:0"` // Premium tier monthly limit.
	PremiumPerspectivesUsed  int64 `gorm:"not null;default:0"` // Premium tier usage this month.
	NormalPerspectivesLimit  int64 `gorm:"not null;default:0"` // Normal tier monthly limit.
	NormalPerspectivesUsed   int64 `gorm:"not null;default:0"` // Normal tier usage this month.
	EcoPerspectivesLimit     int64 `gorm:"not null;default:0"` // Eco tier monthly limit.
	EcoPerspectivesUsed      int64 `gorm:"not null;default:0"` // Eco tier usage this month.

	CurrentMonthStart time.Time  `gorm:"not null"` // First day of the accounting month (UTC).
	LastResetDate     *time.Time // Time of the most recent monthly reset.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (PerspectiveQuota) TableName() string {
	return "user_perspective_quotas"
}
