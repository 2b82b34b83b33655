package models

import "time"

// UserCredits holds a user's credit balances. The promotional balance is
// always drained before the paid balance; both floor at zero.
type UserCredits struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID             string  `gorm:"type:text;not null;uniqueIndex"`         // Owning user ID.
	Balance            float64 `gorm:"type:decimal(20,10);not null;default:0"` // Paid credit balance.
	PromotionalBalance float64 `gorm:"type:decimal(20,10);not null;default:0"` // Free promotional balance.
	TotalPurchased     float64 `gorm:"type:decimal(20,10);not null;default:0"` // Lifetime purchased credits.
	TotalSpent         float64 `gorm:"type:decimal(20,10);not null;default:0"` // Lifetime requested deductions.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (UserCredits) TableName() string {
	return "user_credits"
}
