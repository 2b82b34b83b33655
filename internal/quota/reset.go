package quota

import (
	"context"
	"fmt"

	"github.com/polydev-ai/quotaengine/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ResetOne zeroes a user's monthly counters and advances the quota row to
// the current month. Perspective limits and plan assignment are preserved.
// Resetting an already current row is a harmless no-op rewrite.
func (l *Ledger) ResetOne(ctx context.Context, userID string) error {
	now := l.now()
	res := l.db.WithContext(ctx).
		Model(&models.PerspectiveQuota{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"messages_used":             0,
			"premium_perspectives_used": 0,
			"normal_perspectives_used":  0,
			"eco_perspectives_used":     0,
			"current_month_start":       monthStart(now),
			"last_reset_date":           now,
		})
	if res.Error != nil {
		return fmt.Errorf("quota: reset: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ResetAll rolls every stale quota row over to the current month in a single
// statement and reports how many rows were reset.
func (l *Ledger) ResetAll(ctx context.Context) (int64, error) {
	now := l.now()
	start := monthStart(now)

	res := l.db.WithContext(ctx).
		Model(&models.PerspectiveQuota{}).
		Where("current_month_start < ?", start).
		Updates(map[string]any{
			"messages_used":             0,
			"premium_perspectives_used": 0,
			"normal_perspectives_used":  0,
			"eco_perspectives_used":     0,
			"current_month_start":       start,
			"last_reset_date":           now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("quota: reset all: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.WithField("count", res.RowsAffected).Info("quota: monthly counters reset")
	}
	return res.RowsAffected, nil
}
