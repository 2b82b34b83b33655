package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/polydev-ai/quotaengine/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryEntry is one usage event to fold into a user's monthly rollup.
type SummaryEntry struct {
	UserID        string
	PlanTier      string
	Tier          string
	EstimatedCost float64
}

// RecordSummary folds a single usage event into the monthly_usage_summary
// row for the user's current month, creating the row on first use. The
// upsert increments counters in the store so concurrent writers never lose
// updates.
func (l *Ledger) RecordSummary(ctx context.Context, entry SummaryEntry) error {
	usedColumn, costColumn, errColumn := summaryColumns(entry.Tier)
	if errColumn != nil {
		return errColumn
	}

	row := models.MonthlyUsageSummary{
		UserID:             entry.UserID,
		MonthYear:          monthKey(l.now()),
		PlanTier:           entry.PlanTier,
		TotalMessages:      1,
		TotalEstimatedCost: entry.EstimatedCost,
	}
	switch entry.Tier {
	case models.TierPremium:
		row.PremiumPerspectivesUsed = 1
		row.PremiumCost = entry.EstimatedCost
	case models.TierNormal:
		row.NormalPerspectivesUsed = 1
		row.NormalCost = entry.EstimatedCost
	case models.TierEco:
		row.EcoPerspectivesUsed = 1
		row.EcoCost = entry.EstimatedCost
	}

	errUpsert := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "month_year"}},
			DoUpdates: clause.Assignments(map[string]any{
				"plan_tier":            entry.PlanTier,
				"total_messages":       gorm.Expr("total_messages + 1"),
				usedColumn:             gorm.Expr(usedColumn + " + 1"),
				costColumn:             gorm.Expr(costColumn+" + ?", entry.EstimatedCost),
				"total_estimated_cost": gorm.Expr("total_estimated_cost + ?", entry.EstimatedCost),
			}),
		}).
		Create(&row).Error
	if errUpsert != nil {
		return fmt.Errorf("quota: record summary: %w", errUpsert)
	}
	return nil
}

// MonthlySummary returns the rollup row for a user and month key, or nil
// when no usage was recorded that month.
func (l *Ledger) MonthlySummary(ctx context.Context, userID, month string) (*models.MonthlyUsageSummary, error) {
	if month == "" {
		month = monthKey(l.now())
	}

	var row models.MonthlyUsageSummary
	errFind := l.db.WithContext(ctx).
		Where("user_id = ? AND month_year = ?", userID, month).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("quota: load summary: %w", errFind)
	}
	return &row, nil
}

// summaryColumns maps a tier to its summary counter and cost columns.
func summaryColumns(tier string) (used, cost string, err error) {
	switch tier {
	case models.TierPremium:
		return "premium_perspectives_used", "premium_cost", nil
	case models.TierNormal:
		return "normal_perspectives_used", "normal_cost", nil
	case models.TierEco:
		return "eco_perspectives_used", "eco_cost", nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
}
