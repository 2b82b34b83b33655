package bonus

import (
	"context"
	"errors"
	"fmt"

	"github.com/polydev-ai/quotaengine/internal/models"

	"gorm.io/gorm"
)

const (
	referralSignupMessages      int64 = 100
	referralBonusValidityDays         = 30
	referralCompletionThreshold int64 = 10
	fallbackFreeTierMessages    int64 = 200
)

// GrantReferralSignup grants the signup-side referral bonus: 100 messages
// valid for 30 days.
func (l *Ledger) GrantReferralSignup(ctx context.Context, userID, referrerID string) (*models.BonusQuota, error) {
	expiresAt := l.now().AddDate(0, 0, referralBonusValidityDays)
	return l.Grant(ctx, GrantParams{
		UserID:        userID,
		BonusMessages: referralSignupMessages,
		BonusType:     models.BonusTypeReferralSignup,
		Reason:        fmt.Sprintf("Signup bonus via referral from user %s", referrerID),
		ExpiresAt:     &expiresAt,
	})
}

// GrantReferralCompletion grants the referrer half of the free-tier monthly
// message allowance once the referred user reaches the completion threshold.
// The allowance is read from the tier limits table so admin edits take
// effect without a deploy.
func (l *Ledger) GrantReferralCompletion(ctx context.Context, referrerID, referredUserID string) (*models.BonusQuota, error) {
	freeMessages := fallbackFreeTierMessages

	var limit models.TierLimit
	errFind := l.db.WithContext(ctx).
		Where("plan_tier = ?", models.PlanFree).
		Take(&limit).Error
	if errFind == nil && limit.MessagesPerMonth != nil && *limit.MessagesPerMonth > 0 {
		freeMessages = *limit.MessagesPerMonth
	} else if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("bonus: load free tier limits: %w", errFind)
	}

	expiresAt := l.now().AddDate(0, 0, referralBonusValidityDays)
	return l.Grant(ctx, GrantParams{
		UserID:        referrerID,
		BonusMessages: freeMessages / 2,
		BonusType:     models.BonusTypeReferralCompletion,
		Reason:        fmt.Sprintf("Referral completion bonus - friend %s used %d messages", referredUserID, referralCompletionThreshold),
		ExpiresAt:     &expiresAt,
	})
}

// ReferralCompletionReached reports whether a referred user has consumed
// enough messages to trigger the referrer's completion bonus.
func (l *Ledger) ReferralCompletionReached(ctx context.Context, userID string) (bool, error) {
	var quota models.PerspectiveQuota
	if errFind := l.db.WithContext(ctx).
		Select("messages_used").
		Where("user_id = ?", userID).
		Take(&quota).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("bonus: referral threshold: %w", errFind)
	}
	return quota.MessagesUsed >= referralCompletionThreshold, nil
}
