// Package engine ties the tier classifier and the quota, bonus, and credit
// ledgers into the accounting operations the platform calls around each
// model request.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/polydev-ai/quotaengine/internal/bonus"
	"github.com/polydev-ai/quotaengine/internal/credits"
	"github.com/polydev-ai/quotaengine/internal/models"
	"github.com/polydev-ai/quotaengine/internal/quota"
	"github.com/polydev-ai/quotaengine/internal/tiers"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Engine is the accounting facade. Pre-flight checks fail closed; post-hoc
// accounting after a model has already run fails open so a provider response
// is never thrown away over a bookkeeping error.
type Engine struct {
	db         *gorm.DB
	classifier *tiers.Classifier
	quotas     *quota.Ledger
	bonuses    *bonus.Ledger
	credits    *credits.Ledger
}

// New constructs an Engine and its ledgers over one database handle.
func New(db *gorm.DB) *Engine {
	classifier := tiers.NewClassifier(db)
	bonuses := bonus.NewLedger(db)
	return &Engine{
		db:         db,
		classifier: classifier,
		quotas:     quota.NewLedger(db, classifier, bonuses),
		bonuses:    bonuses,
		credits:    credits.NewLedger(db),
	}
}

// Quotas exposes the quota ledger for scheduling and administration.
func (e *Engine) Quotas() *quota.Ledger { return e.quotas }

// Bonuses exposes the bonus ledger for administration.
func (e *Engine) Bonuses() *bonus.Ledger { return e.bonuses }

// Credits exposes the credit ledger for administration.
func (e *Engine) Credits() *credits.Ledger { return e.credits }

// CheckAvailability reports whether a user may run the given model right
// now. Store failures surface as errors so callers deny the request.
func (e *Engine) CheckAvailability(ctx context.Context, userID, modelID string) (quota.AvailabilityResult, error) {
	return e.quotas.CheckAvailability(ctx, userID, modelID)
}

// DeductParams describes one completed model request to account for.
type DeductParams struct {
	UserID           string
	SessionID        string
	ModelID          string
	InputTokens      int64
	OutputTokens     int64
	SourceType       string
	ProviderSourceID string
	Metadata         map[string]string
	ResponseMetadata json.RawMessage
}

// DeductResult reports what a deduction actually charged.
type DeductResult struct {
	ModelTier            string  `json:"model_tier"`
	UsedBonus            bool    `json:"used_bonus"`
	PerspectivesDeducted int64   `json:"perspectives_deducted"`
	CreditsDeducted      int64   `json:"credits_deducted"`
	EstimatedCost        float64 `json:"estimated_cost"`
}

// chargesCredits reports whether a capacity source draws from the pooled
// credit balance. User-owned keys and CLI sessions cost the platform
// nothing, so only perspectives are metered for them.
func chargesCredits(sourceType string) bool {
	switch sourceType {
	case models.SourceUserKey, models.SourceUserCLI:
		return false
	default:
		return true
	}
}

// DeductUsage records one completed request: tier resolution, credit draw,
// bonus consumption, quota increments, the usage log row, and the monthly
// rollup. Only the quota increment can fail the call; every other step logs
// and continues because the provider response already exists.
func (e *Engine) DeductUsage(ctx context.Context, params DeductParams) (*DeductResult, error) {
	info := e.classifier.Resolve(ctx, params.ModelID)
	result := &DeductResult{
		ModelTier:            info.Tier,
		PerspectivesDeducted: 1,
		EstimatedCost:        tiers.EstimateCost(info, params.InputTokens, params.OutputTokens),
	}

	if chargesCredits(params.SourceType) {
		result.CreditsDeducted = tiers.CreditCost(info.Tier)
		if errCredits := e.credits.Deduct(ctx, params.UserID, float64(result.CreditsDeducted)); errCredits != nil {
			log.WithError(errCredits).WithField("user_id", params.UserID).Warn("engine: credit deduction failed")
		}
	}

	result.UsedBonus = e.bonuses.Deduct(ctx, params.UserID, 1) > 0

	if errQuota := e.quotas.IncrementUsage(ctx, params.UserID, info.Tier, !result.UsedBonus); errQuota != nil {
		return nil, errQuota
	}

	e.logUsage(ctx, params, info, result)

	planTier := models.PlanFree
	if row, found, errLoad := e.loadQuotaRow(ctx, params.UserID); errLoad == nil && found {
		planTier = row.PlanTier
	}
	if errSummary := e.quotas.RecordSummary(ctx, quota.SummaryEntry{
		UserID:        params.UserID,
		PlanTier:      planTier,
		Tier:          info.Tier,
		EstimatedCost: result.EstimatedCost,
	}); errSummary != nil {
		log.WithError(errSummary).WithField("user_id", params.UserID).Warn("engine: monthly summary upsert failed")
	}

	return result, nil
}

// logUsage appends the perspective_usage row. Failures are logged and
// swallowed.
func (e *Engine) logUsage(ctx context.Context, params DeductParams, info tiers.Info, result *DeductResult) {
	sessionID := strings.TrimSpace(params.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	requestMeta, errMeta := json.Marshal(models.UsageMetadata{
		SourceType: params.SourceType,
		UsedBonus:  result.UsedBonus,
		Extra:      params.Metadata,
	})
	if errMeta != nil {
		log.WithError(errMeta).Warn("engine: usage metadata marshal failed")
		requestMeta = nil
	}

	row := models.PerspectiveUsage{
		UserID:               params.UserID,
		SessionID:            sessionID,
		ModelName:            info.ModelID,
		ModelTier:            info.Tier,
		Provider:             info.Provider,
		InputTokens:          params.InputTokens,
		OutputTokens:         params.OutputTokens,
		TotalTokens:          params.InputTokens + params.OutputTokens,
		EstimatedCost:        result.EstimatedCost,
		PerspectivesDeducted: result.PerspectivesDeducted,
		CreditsDeducted:      result.CreditsDeducted,
		UsedBonus:            result.UsedBonus,
		SourceType:           params.SourceType,
		ProviderSourceID:     params.ProviderSourceID,
		RequestMetadata:      datatypes.JSON(requestMeta),
		ResponseMetadata:     datatypes.JSON(params.ResponseMetadata),
	}
	if errCreate := e.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithField("user_id", params.UserID).Warn("engine: usage log insert failed")
	}
}

// GrantBonus issues a bonus message grant.
func (e *Engine) GrantBonus(ctx context.Context, params bonus.GrantParams) (*models.BonusQuota, error) {
	return e.bonuses.Grant(ctx, params)
}

// AvailableBonusBalance sums a user's unexpired, unconsumed bonus messages.
func (e *Engine) AvailableBonusBalance(ctx context.Context, userID string) (int64, error) {
	return e.bonuses.AvailableBalance(ctx, userID)
}

// UpdateUserPlan moves a user onto a new plan tier.
func (e *Engine) UpdateUserPlan(ctx context.Context, userID, planTier string) error {
	return e.quotas.UpdateUserPlan(ctx, userID, planTier)
}

// ResetMonthlyQuota rolls one user's counters to the current month.
func (e *Engine) ResetMonthlyQuota(ctx context.Context, userID string) error {
	return e.quotas.ResetOne(ctx, userID)
}

// ResetAllMonthlyQuotas rolls every stale quota row to the current month.
func (e *Engine) ResetAllMonthlyQuotas(ctx context.Context) (int64, error) {
	return e.quotas.ResetAll(ctx)
}

// QuotaStatus is a user-facing snapshot of quota, bonus, and credit state.
type QuotaStatus struct {
	PlanTier           string          `json:"plan_tier"`
	Usage              quota.Usage     `json:"usage"`
	Remaining          quota.Remaining `json:"remaining"`
	CreditBalance      float64         `json:"credit_balance"`
	PromotionalBalance float64         `json:"promotional_balance"`
}

// Status returns a user's current accounting snapshot, provisioning the
// quota row at default-plan limits on first sight.
func (e *Engine) Status(ctx context.Context, userID string) (*QuotaStatus, error) {
	row, errEnsure := e.quotas.EnsureQuota(ctx, userID)
	if errEnsure != nil {
		return nil, errEnsure
	}

	bonusBalance, errBalance := e.bonuses.AvailableBalance(ctx, userID)
	if errBalance != nil {
		log.WithError(errBalance).WithField("user_id", userID).Warn("engine: bonus balance unavailable")
	}

	status := &QuotaStatus{
		PlanTier:  row.PlanTier,
		Usage:     quota.UsageOf(row),
		Remaining: quota.RemainingOf(row, bonusBalance),
	}

	if balance, errCredits := e.credits.Balance(ctx, userID); errCredits == nil {
		status.CreditBalance = balance.Balance
		status.PromotionalBalance = balance.PromotionalBalance
	} else {
		log.WithError(errCredits).WithField("user_id", userID).Warn("engine: credit balance unavailable")
	}

	return status, nil
}

func (e *Engine) loadQuotaRow(ctx context.Context, userID string) (*models.PerspectiveQuota, bool, error) {
	var row models.PerspectiveQuota
	errFind := e.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if errFind != nil {
		return nil, false, errFind
	}
	return &row, true, nil
}
