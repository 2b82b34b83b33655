package bonus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/polydev-ai/quotaengine/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrInvalidGrant indicates a grant request with no messages or no user.
var ErrInvalidGrant = errors.New("bonus: invalid grant")

// Ledger manages time-bounded bonus message grants.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger constructs a bonus Ledger backed by GORM.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// GrantParams holds inputs for a bonus grant.
type GrantParams struct {
	UserID        string
	BonusMessages int64
	BonusType     string
	GrantedBy     string
	Reason        string
	ExpiresAt     *time.Time
}

// Grant creates a bonus message grant.
func (l *Ledger) Grant(ctx context.Context, params GrantParams) (*models.BonusQuota, error) {
	userID := strings.TrimSpace(params.UserID)
	if userID == "" || params.BonusMessages <= 0 {
		return nil, ErrInvalidGrant
	}

	bonusType := strings.TrimSpace(params.BonusType)
	switch bonusType {
	case models.BonusTypeAdminGrant, models.BonusTypeReferralSignup,
		models.BonusTypeReferralCompletion, models.BonusTypePromotion:
	default:
		bonusType = models.BonusTypeOther
	}

	row := models.BonusQuota{
		UserID:        userID,
		BonusMessages: params.BonusMessages,
		BonusType:     bonusType,
		GrantedBy:     strings.TrimSpace(params.GrantedBy),
		Reason:        strings.TrimSpace(params.Reason),
		ExpiresAt:     params.ExpiresAt,
	}
	if errCreate := l.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("bonus: grant: %w", errCreate)
	}
	return &row, nil
}

// AvailableBalance returns the total unconsumed messages across active
// grants. Computed as a single aggregate; expired and exhausted grants
// contribute nothing.
func (l *Ledger) AvailableBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	if errScan := l.db.WithContext(ctx).
		Model(&models.BonusQuota{}).
		Where("user_id = ? AND messages_used < bonus_messages", userID).
		Where("expires_at IS NULL OR expires_at > ?", l.now()).
		Select("COALESCE(SUM(bonus_messages - messages_used), 0)").
		Scan(&balance).Error; errScan != nil {
		return 0, fmt.Errorf("bonus: balance: %w", errScan)
	}
	return balance, nil
}

// ListActive returns active grants in deduction order: grants closest to
// expiry first, never-expiring grants last, ties broken by grant age. This
// ordering minimizes bonus capacity lost to expiry.
func (l *Ledger) ListActive(ctx context.Context, userID string) ([]models.BonusQuota, error) {
	var grants []models.BonusQuota
	if errFind := l.db.WithContext(ctx).
		Where("user_id = ? AND messages_used < bonus_messages", userID).
		Where("expires_at IS NULL OR expires_at > ?", l.now()).
		Order("expires_at ASC NULLS LAST, created_at ASC, id ASC").
		Find(&grants).Error; errFind != nil {
		return nil, fmt.Errorf("bonus: list active: %w", errFind)
	}
	return grants, nil
}

// Deduct consumes up to count messages from active grants in FIFO expiry
// order and returns the amount actually deducted. Each grant update is
// independent; a failed update is logged and deduction continues with the
// next grant, so partial deduction is possible.
func (l *Ledger) Deduct(ctx context.Context, userID string, count int64) int64 {
	if count <= 0 {
		return 0
	}

	grants, errList := l.ListActive(ctx, userID)
	if errList != nil {
		log.WithError(errList).WithField("user_id", userID).Warn("bonus: deduct: listing grants failed")
		return 0
	}

	var deducted int64
	remaining := count
	for _, grant := range grants {
		if remaining <= 0 {
			break
		}
		take := grant.Remaining()
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}

		// The guard keeps the increment within the grant size even when a
		// concurrent deduction consumed the grant between list and update.
		res := l.db.WithContext(ctx).
			Model(&models.BonusQuota{}).
			Where("id = ? AND messages_used + ? <= bonus_messages", grant.ID, take).
			Update("messages_used", gorm.Expr("messages_used + ?", take))
		if res.Error != nil {
			log.WithError(res.Error).WithField("bonus_id", grant.ID).Warn("bonus: deduct: grant update failed")
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		deducted += take
		remaining -= take
	}
	return deducted
}

// ListAll returns every grant for a user, newest first, including expired
// and exhausted grants. Intended for admin and audit views.
func (l *Ledger) ListAll(ctx context.Context, userID string) ([]models.BonusQuota, error) {
	var grants []models.BonusQuota
	if errFind := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&grants).Error; errFind != nil {
		return nil, fmt.Errorf("bonus: list all: %w", errFind)
	}
	return grants, nil
}

// Delete removes a grant by ID. Admin-only; grants are otherwise kept for
// audit.
func (l *Ledger) Delete(ctx context.Context, bonusID uint64) error {
	res := l.db.WithContext(ctx).Delete(&models.BonusQuota{}, bonusID)
	if res.Error != nil {
		return fmt.Errorf("bonus: delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
