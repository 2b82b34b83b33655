package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/polydev-ai/quotaengine/internal/models"
)

// UsageReport aggregates a user's metering log over a timeframe.
type UsageReport struct {
	Timeframe     string           `json:"timeframe"`
	TotalRequests int64            `json:"total_requests"`
	TotalTokens   int64            `json:"total_tokens"`
	TotalCredits  int64            `json:"total_credits"`
	EstimatedCost float64          `json:"estimated_cost"`
	BonusCovered  int64            `json:"bonus_covered"`
	ByTier        map[string]int64 `json:"by_tier"`
}

// CreditsReport summarizes a user's credit account plus spend over a
// timeframe.
type CreditsReport struct {
	Timeframe          string  `json:"timeframe"`
	Balance            float64 `json:"balance"`
	PromotionalBalance float64 `json:"promotional_balance"`
	TotalPurchased     float64 `json:"total_purchased"`
	TotalSpent         float64 `json:"total_spent"`
	CreditsInWindow    int64   `json:"credits_in_window"`
}

// timeframeStart maps a timeframe token to its window start. Supported
// tokens are "24h", "7d", "30d", "90d", "1y", "month" (current calendar
// month, UTC) and "all". Unrecognized tokens are an error so callers cannot
// silently query the wrong window.
func timeframeStart(timeframe string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(timeframe)) {
	case "", "30d":
		return now.Add(-30 * 24 * time.Hour), nil
	case "24h":
		return now.Add(-24 * time.Hour), nil
	case "7d":
		return now.Add(-7 * 24 * time.Hour), nil
	case "90d":
		return now.Add(-90 * 24 * time.Hour), nil
	case "1y":
		return now.Add(-365 * 24 * time.Hour), nil
	case "month":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case "all":
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("engine: unknown timeframe %q", timeframe)
	}
}

// usageWindow materializes the log rows for a user and window.
func (e *Engine) usageWindow(ctx context.Context, userID string, since time.Time) ([]models.PerspectiveUsage, error) {
	query := e.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}

	var rows []models.PerspectiveUsage
	if errScan := query.Find(&rows).Error; errScan != nil {
		return nil, fmt.Errorf("engine: usage window: %w", errScan)
	}
	return rows, nil
}

// Usage aggregates a user's metering log over the given timeframe.
func (e *Engine) Usage(ctx context.Context, userID, timeframe string) (*UsageReport, error) {
	now := time.Now().UTC()
	since, errFrame := timeframeStart(timeframe, now)
	if errFrame != nil {
		return nil, errFrame
	}

	rows, errRows := e.usageWindow(ctx, userID, since)
	if errRows != nil {
		return nil, errRows
	}

	report := &UsageReport{
		Timeframe: timeframe,
		ByTier:    map[string]int64{},
	}
	for _, row := range rows {
		report.TotalRequests++
		report.TotalTokens += row.TotalTokens
		report.TotalCredits += row.CreditsDeducted
		report.EstimatedCost += row.EstimatedCost
		report.ByTier[row.ModelTier]++
		if row.UsedBonus {
			report.BonusCovered++
		}
	}
	return report, nil
}

// CreditsUsage summarizes a user's credit account and the credits spent in
// the given timeframe.
func (e *Engine) CreditsUsage(ctx context.Context, userID, timeframe string) (*CreditsReport, error) {
	now := time.Now().UTC()
	since, errFrame := timeframeStart(timeframe, now)
	if errFrame != nil {
		return nil, errFrame
	}

	account, errBalance := e.credits.Balance(ctx, userID)
	if errBalance != nil {
		return nil, errBalance
	}

	rows, errRows := e.usageWindow(ctx, userID, since)
	if errRows != nil {
		return nil, errRows
	}

	report := &CreditsReport{
		Timeframe:          timeframe,
		Balance:            account.Balance,
		PromotionalBalance: account.PromotionalBalance,
		TotalPurchased:     account.TotalPurchased,
		TotalSpent:         account.TotalSpent,
	}
	for _, row := range rows {
		report.CreditsInWindow += row.CreditsDeducted
	}
	return report, nil
}
