package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/polydev-ai/quotaengine/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidUser indicates an empty user ID.
var ErrInvalidUser = errors.New("credits: empty user id")

// Ledger manages paid and promotional credit balances.
type Ledger struct {
	db *gorm.DB
}

// NewLedger constructs a credit Ledger backed by GORM.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Balance returns the user's credit row, creating a zero-balance row when
// none exists yet.
func (l *Ledger) Balance(ctx context.Context, userID string) (*models.UserCredits, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUser
	}

	var row models.UserCredits
	errFind := l.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errFind == nil {
		return &row, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("credits: load: %w", errFind)
	}

	row = models.UserCredits{UserID: userID}
	if errCreate := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("credits: init: %w", errCreate)
	}
	// Re-read in case a concurrent init won the insert.
	if errReload := l.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error; errReload != nil {
		return nil, fmt.Errorf("credits: reload: %w", errReload)
	}
	return &row, nil
}

// Deduct charges credits with promotional-first precedence. The promotional
// balance is drained before the paid balance, both floor at zero, and
// total_spent records the full requested amount regardless of coverage.
// Exhausted balances never block the caller; the shortfall is an accounting
// concern, not a gating one.
func (l *Ledger) Deduct(ctx context.Context, userID string, amount float64) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidUser
	}
	if amount <= 0 {
		return nil
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.UserCredits
		errFind := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&row).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			row = models.UserCredits{UserID: userID}
			if errCreate := tx.Create(&row).Error; errCreate != nil {
				return fmt.Errorf("credits: init: %w", errCreate)
			}
		} else if errFind != nil {
			return fmt.Errorf("credits: load: %w", errFind)
		}

		fromPromo := row.PromotionalBalance
		if fromPromo > amount {
			fromPromo = amount
		}
		fromBalance := amount - fromPromo
		if fromBalance > row.Balance {
			fromBalance = row.Balance
		}

		updates := map[string]any{
			"promotional_balance": gorm.Expr("promotional_balance - ?", fromPromo),
			"balance":             gorm.Expr("balance - ?", fromBalance),
			"total_spent":         gorm.Expr("total_spent + ?", amount),
		}
		if errUpdate := tx.Model(&models.UserCredits{}).
			Where("id = ?", row.ID).
			Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("credits: deduct: %w", errUpdate)
		}
		return nil
	})
}

// Add credits a user's balance. Promotional credits go to the promotional
// balance; purchased credits go to the paid balance and count toward
// total_purchased.
func (l *Ledger) Add(ctx context.Context, userID string, amount float64, promotional bool) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidUser
	}
	if amount <= 0 {
		return nil
	}

	if _, errEnsure := l.Balance(ctx, userID); errEnsure != nil {
		return errEnsure
	}

	updates := map[string]any{}
	if promotional {
		updates["promotional_balance"] = gorm.Expr("promotional_balance + ?", amount)
	} else {
		updates["balance"] = gorm.Expr("balance + ?", amount)
		updates["total_purchased"] = gorm.Expr("total_purchased + ?", amount)
	}

	if errUpdate := l.db.WithContext(ctx).
		Model(&models.UserCredits{}).
		Where("user_id = ?", userID).
		Updates(updates).Error; errUpdate != nil {
		return fmt.Errorf("credits: add: %w", errUpdate)
	}
	return nil
}
