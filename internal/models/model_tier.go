package models

import "time"

// Model cost tiers.
const (
	// TierPremium is the most expensive model tier.
	TierPremium = "premium"
	// TierNormal is the mid-range model tier and the safe default.
	TierNormal = "normal"
	// TierEco is the cheapest model tier.
	TierEco = "eco"
)

// Model routing strategies.
const (
	// RoutingAPIKey routes requests through provider API keys.
	RoutingAPIKey = "api_key"
	// RoutingUnlimitedAccount routes requests through flat-rate accounts.
	RoutingUnlimitedAccount = "unlimited_account"
	// RoutingMixed allows either routing path.
	RoutingMixed = "mixed"
)

// ModelTier is database-backed tier reference data, consulted when a model
// is missing from the in-process catalog.
type ModelTier struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ModelName   string `gorm:"type:text;not null;uniqueIndex"`      // Model identifier.
	Provider    string `gorm:"type:text;not null"`                  // Upstream provider name.
	Tier        string `gorm:"type:text;not null;default:'normal'"` // Cost tier.
	DisplayName string `gorm:"type:text"`                           // UI display name.

	CostPer1kInput  float64 `gorm:"type:decimal(12,8);not null;default:0"` // USD per 1k input tokens.
	CostPer1kOutput float64 `gorm:"type:decimal(12,8);not null;default:0"` // USD per 1k output tokens.

	RoutingStrategy string `gorm:"type:text;not null;default:'api_key'"` // Routing strategy hint.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (ModelTier) TableName() string {
	return "model_tiers"
}
