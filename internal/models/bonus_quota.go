package models

import "time"

// Bonus grant types.
const (
	// BonusTypeAdminGrant marks bonuses granted manually by an administrator.
	BonusTypeAdminGrant = "admin_grant"
	// BonusTypeReferralSignup marks the signup-side referral bonus.
	BonusTypeReferralSignup = "referral_signup"
	// BonusTypeReferralCompletion marks the referrer-side completion bonus.
	BonusTypeReferralCompletion = "referral_completion"
	// BonusTypePromotion marks promotional campaign bonuses.
	BonusTypePromotion = "promotion"
	// BonusTypeOther marks bonuses that fit no other category.
	BonusTypeOther = "other"
)

// BonusQuota is a single time-bounded bonus message grant. Rows are kept for
// audit after exhaustion or expiry; only messages_used is ever updated.
type BonusQuota struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID        string     `gorm:"type:text;not null;index"` // Receiving user ID.
	BonusMessages int64      `gorm:"not null"`                 // Grant size in messages.
	BonusType     string     `gorm:"type:text;not null;index"` // Grant category.
	GrantedBy     string     `gorm:"type:text"`                // Granting admin or system actor, if any.
	Reason        string     `gorm:"type:text"`                // Human-readable grant reason.
	MessagesUsed  int64      `gorm:"not null;default:0"`       // Messages consumed from this grant.
	ExpiresAt     *time.Time `gorm:"index"`                    // Expiration time, nil = never expires.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (BonusQuota) TableName() string {
	return "user_bonus_quotas"
}

// Remaining returns the unconsumed message count of the grant.
func (b BonusQuota) Remaining() int64 {
	left := b.BonusMessages - b.MessagesUsed
	if left < 0 {
		return 0
	}
	return left
}

// ActiveAt reports whether the grant can still be drawn from at the given time.
func (b BonusQuota) ActiveAt(now time.Time) bool {
	if b.MessagesUsed >= b.BonusMessages {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}
