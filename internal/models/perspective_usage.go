package models

import (
	"time"

	"gorm.io/datatypes"
)

// Capacity source types for a metered request.
const (
	// SourceUserKey marks requests served with the user's own API key.
	SourceUserKey = "user_key"
	// SourceUserCLI marks requests served by the user's local CLI tool.
	SourceUserCLI = "user_cli"
	// SourceAdminKey marks requests served with a pooled admin API key.
	SourceAdminKey = "admin_key"
	// SourceAdminCredits marks requests served from pooled admin credits.
	SourceAdminCredits = "admin_credits"
)

// PerspectiveUsage is the append-only metering log. One row per request;
// rows are never updated.
type PerspectiveUsage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    string `gorm:"type:text;not null;index"` // Requesting user ID.
	SessionID string `gorm:"type:text;not null;index"` // Chat session identifier.

	ModelName string `gorm:"type:text;not null;index"` // Model identifier.
	ModelTier string `gorm:"type:text;not null;index"` // Resolved cost tier.
	Provider  string `gorm:"type:text;not null"`       // Upstream provider name.

	InputTokens  int64 `gorm:"not null;default:0"` // Input token count.
	OutputTokens int64 `gorm:"not null;default:0"` // Output token count.
	TotalTokens  int64 `gorm:"not null;default:0"` // Total token count.

	EstimatedCost        float64 `gorm:"type:decimal(20,10);not null;default:0"` // Estimated USD cost.
	PerspectivesDeducted int64   `gorm:"not null;default:0"`                     // Perspectives charged.
	CreditsDeducted      int64   `gorm:"not null;default:0"`                     // Credits charged.

	UsedBonus        bool   `gorm:"not null;default:false"` // Whether a bonus message covered the request.
	SourceType       string `gorm:"type:text;index"`        // Capacity source classification.
	ProviderSourceID string `gorm:"type:text"`              // Provider key or account the request used.

	RequestMetadata  datatypes.JSON `gorm:"type:jsonb"` // Tagged request metadata.
	ResponseMetadata datatypes.JSON `gorm:"type:jsonb"` // Open response metadata.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// TableName overrides the default table name.
func (PerspectiveUsage) TableName() string {
	return "perspective_usage"
}

// UsageMetadata is the known shape of request metadata the engine reads and
// writes. Extra carries caller fields the engine preserves but never
// interprets.
type UsageMetadata struct {
	SourceType string            `json:"source_type,omitempty"`
	UsedBonus  bool              `json:"used_bonus"`
	Extra      map[string]string `json:"extra,omitempty"`
}
