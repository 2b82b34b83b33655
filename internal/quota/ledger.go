package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/polydev-ai/quotaengine/internal/bonus"
	"github.com/polydev-ai/quotaengine/internal/models"
	"github.com/polydev-ai/quotaengine/internal/settings"
	"github.com/polydev-ai/quotaengine/internal/tiers"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrUnknownTier indicates a tier string outside premium/normal/eco.
var ErrUnknownTier = errors.New("quota: unknown tier")

// Remaining is the per-bucket remaining capacity of a user.
type Remaining struct {
	Messages      *int64 `json:"messages,omitempty"` // nil = unlimited
	BonusMessages int64  `json:"bonus_messages"`
	Premium       int64  `json:"premium"`
	Normal        int64  `json:"normal"`
	Eco           int64  `json:"eco"`
}

// Usage is the current per-bucket consumption of a user.
type Usage struct {
	Messages int64 `json:"messages"`
	Premium  int64 `json:"premium"`
	Normal   int64 `json:"normal"`
	Eco      int64 `json:"eco"`
}

// AvailabilityResult answers whether a user may run a model right now.
// Denials are normal outcomes carried in Reason, not errors.
type AvailabilityResult struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	PlanTier  string    `json:"plan_tier"`
	ModelTier string    `json:"model_tier"`
	Remaining Remaining `json:"remaining"`
	Usage     Usage     `json:"usage"`
}

// planLimits is one plan's limit set.
type planLimits struct {
	messages *int64 // nil = unlimited
	premium  int64
	normal   int64
	eco      int64
}

func limitOf(n int64) *int64 { return &n }

// fallbackPlanLimits is used when the admin tier limits table has no row for
// a plan.
var fallbackPlanLimits = map[string]planLimits{
	models.PlanFree:       {messages: limitOf(200), premium: 10, normal: 100, eco: 500},
	models.PlanPlus:       {messages: nil, premium: 500, normal: 2000, eco: 10000},
	models.PlanPro:        {messages: nil, premium: 1500, normal: 6000, eco: 30000},
	models.PlanEnterprise: {messages: nil, premium: 5000, normal: 20000, eco: 100000},
}

// Ledger manages per-user monthly quota rows.
type Ledger struct {
	db         *gorm.DB
	classifier *tiers.Classifier
	bonuses    *bonus.Ledger
	now        func() time.Time
}

// NewLedger constructs a quota Ledger.
func NewLedger(db *gorm.DB, classifier *tiers.Classifier, bonuses *bonus.Ledger) *Ledger {
	return &Ledger{
		db:         db,
		classifier: classifier,
		bonuses:    bonuses,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// monthKey formats a time as the "YYYY-MM" comparison key.
func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// monthStart returns the first day of t's month in UTC.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// CheckAvailability decides whether a user may run the given model. Store
// failures return an error so the caller denies: capacity is never given
// away during an outage. Limit denials are returned with Allowed=false and
// a reason, not an error.
func (l *Ledger) CheckAvailability(ctx context.Context, userID, modelID string) (AvailabilityResult, error) {
	info := l.classifier.Resolve(ctx, modelID)

	row, found, errLoad := l.loadQuota(ctx, userID)
	if errLoad != nil {
		return AvailabilityResult{}, errLoad
	}
	if !found {
		return AvailabilityResult{
			Allowed:   false,
			Reason:    "user quota not found",
			PlanTier:  models.PlanFree,
			ModelTier: info.Tier,
		}, nil
	}

	// Lazy monthly rollover: reset and re-read when the stored month is
	// stale.
	now := l.now()
	if monthKey(row.CurrentMonthStart) != monthKey(now) {
		if errReset := l.ResetOne(ctx, userID); errReset != nil {
			return AvailabilityResult{}, errReset
		}
		row, found, errLoad = l.loadQuota(ctx, userID)
		if errLoad != nil {
			return AvailabilityResult{}, errLoad
		}
		if !found {
			return AvailabilityResult{
				Allowed:   false,
				Reason:    "user quota not found",
				PlanTier:  models.PlanFree,
				ModelTier: info.Tier,
			}, nil
		}
	}

	// A balance lookup failure grants no bonus capacity; the request can
	// still pass on the regular quota.
	bonusBalance, errBalance := l.bonuses.AvailableBalance(ctx, userID)
	if errBalance != nil {
		log.WithError(errBalance).WithField("user_id", userID).Warn("quota: bonus balance unavailable")
		bonusBalance = 0
	}

	result := AvailabilityResult{
		PlanTier:  row.PlanTier,
		ModelTier: info.Tier,
		Remaining: RemainingOf(row, bonusBalance),
		Usage:     UsageOf(row),
	}

	// Bonus messages are an overflow valve for the monthly message limit,
	// but tier ceilings hold regardless of bonus balance.
	if row.MessagesPerMonth != nil && row.MessagesUsed >= *row.MessagesPerMonth && bonusBalance <= 0 {
		result.Reason = "monthly message limit exceeded"
		return result, nil
	}

	used, limit, errTier := tierCounters(row, info.Tier)
	if errTier != nil {
		return AvailabilityResult{}, errTier
	}
	if used >= limit {
		result.Reason = fmt.Sprintf("%s perspective limit exceeded", info.Tier)
		return result, nil
	}

	result.Allowed = true
	return result, nil
}

// IncrementUsage atomically bumps the tier perspective counter and, unless
// the request was covered by a bonus message, the monthly message counter.
// The increments happen in the store, never as read-modify-write.
func (l *Ledger) IncrementUsage(ctx context.Context, userID, tier string, countMessage bool) error {
	column, errColumn := tierUsedColumn(tier)
	if errColumn != nil {
		return errColumn
	}

	updates := map[string]any{
		column: gorm.Expr(column + " + 1"),
	}
	if countMessage {
		updates["messages_used"] = gorm.Expr("messages_used + 1")
	}

	res := l.db.WithContext(ctx).
		Model(&models.PerspectiveQuota{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("quota: increment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// EnsureQuota provisions a quota row at default-plan limits when the user
// has none.
func (l *Ledger) EnsureQuota(ctx context.Context, userID string) (*models.PerspectiveQuota, error) {
	row, found, errLoad := l.loadQuota(ctx, userID)
	if errLoad != nil {
		return nil, errLoad
	}
	if found {
		return row, nil
	}

	plan := settings.StringValue(settings.DefaultPlanTierKey, settings.DefaultPlanTier)
	limits, errLimits := l.planLimits(ctx, plan)
	if errLimits != nil {
		return nil, errLimits
	}

	now := l.now()
	created := models.PerspectiveQuota{
		UserID:                   strings.TrimSpace(userID),
		PlanTier:                 plan,
		MessagesPerMonth:         limits.messages,
		PremiumPerspectivesLimit: limits.premium,
		NormalPerspectivesLimit:  limits.normal,
		EcoPerspectivesLimit:     limits.eco,
		CurrentMonthStart:        monthStart(now),
	}
	if errCreate := l.db.WithContext(ctx).Create(&created).Error; errCreate != nil {
		return nil, fmt.Errorf("quota: provision: %w", errCreate)
	}
	return &created, nil
}

// UpdateUserPlan switches a user to a new plan and rewrites the quota row's
// limits from the tier limits configuration. Usage counters are untouched.
func (l *Ledger) UpdateUserPlan(ctx context.Context, userID, planTier string) error {
	planTier = strings.TrimSpace(planTier)
	limits, errLimits := l.planLimits(ctx, planTier)
	if errLimits != nil {
		return errLimits
	}

	if _, errEnsure := l.EnsureQuota(ctx, userID); errEnsure != nil {
		return errEnsure
	}

	if errUpdate := l.db.WithContext(ctx).
		Model(&models.PerspectiveQuota{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"plan_tier":                  planTier,
			"messages_per_month":         limits.messages,
			"premium_perspectives_limit": limits.premium,
			"normal_perspectives_limit":  limits.normal,
			"eco_perspectives_limit":     limits.eco,
		}).Error; errUpdate != nil {
		return fmt.Errorf("quota: update plan: %w", errUpdate)
	}
	return nil
}

// planLimits loads a plan's limits from the tier limits table, falling back
// to the built-in table for unknown or unconfigured plans.
func (l *Ledger) planLimits(ctx context.Context, planTier string) (planLimits, error) {
	var row models.TierLimit
	errFind := l.db.WithContext(ctx).
		Where("plan_tier = ?", planTier).
		Take(&row).Error
	if errFind == nil {
		return planLimits{
			messages: row.MessagesPerMonth,
			premium:  row.PremiumPerspectivesLimit,
			normal:   row.NormalPerspectivesLimit,
			eco:      row.EcoPerspectivesLimit,
		}, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return planLimits{}, fmt.Errorf("quota: load tier limits: %w", errFind)
	}

	if limits, ok := fallbackPlanLimits[planTier]; ok {
		return limits, nil
	}
	return planLimits{}, fmt.Errorf("quota: unknown plan tier %q", planTier)
}

// loadQuota fetches a user's quota row.
func (l *Ledger) loadQuota(ctx context.Context, userID string) (*models.PerspectiveQuota, bool, error) {
	var row models.PerspectiveQuota
	errFind := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if errFind != nil {
		return nil, false, fmt.Errorf("quota: load: %w", errFind)
	}
	return &row, true, nil
}

// RemainingOf computes per-bucket remaining capacity, floored at zero.
func RemainingOf(row *models.PerspectiveQuota, bonusBalance int64) Remaining {
	remaining := Remaining{
		BonusMessages: bonusBalance,
		Premium:       floorZero(row.PremiumPerspectivesLimit - row.PremiumPerspectivesUsed),
		Normal:        floorZero(row.NormalPerspectivesLimit - row.NormalPerspectivesUsed),
		Eco:           floorZero(row.EcoPerspectivesLimit - row.EcoPerspectivesUsed),
	}
	if row.MessagesPerMonth != nil {
		remaining.Messages = limitOf(floorZero(*row.MessagesPerMonth - row.MessagesUsed))
	}
	return remaining
}

// UsageOf snapshots a quota row's consumed counters.
func UsageOf(row *models.PerspectiveQuota) Usage {
	return Usage{
		Messages: row.MessagesUsed,
		Premium:  row.PremiumPerspectivesUsed,
		Normal:   row.NormalPerspectivesUsed,
		Eco:      row.EcoPerspectivesUsed,
	}
}

func floorZero(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// tierCounters returns the used/limit pair for a tier.
func tierCounters(row *models.PerspectiveQuota, tier string) (used, limit int64, err error) {
	switch tier {
	case models.TierPremium:
		return row.PremiumPerspectivesUsed, row.PremiumPerspectivesLimit, nil
	case models.TierNormal:
		return row.NormalPerspectivesUsed, row.NormalPerspectivesLimit, nil
	case models.TierEco:
		return row.EcoPerspectivesUsed, row.EcoPerspectivesLimit, nil
	default:
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
}

// tierUsedColumn maps a tier to its usage counter column.
func tierUsedColumn(tier string) (string, error) {
	switch tier {
	case models.TierPremium:
		return "premium_perspectives_used", nil
	case models.TierNormal:
		return "normal_perspectives_used", nil
	case models.TierEco:
		return "eco_perspectives_used", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTier, tier)
	}
}
