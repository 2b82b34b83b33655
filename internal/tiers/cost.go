package tiers

import (
	"encoding/json"

	"github.com/polydev-ai/quotaengine/internal/models"
	"github.com/polydev-ai/quotaengine/internal/settings"
)

// Default per-request credit costs by tier.
const (
	defaultEcoCredits     int64 = 1
	defaultNormalCredits  int64 = 4
	defaultPremiumCredits int64 = 20
)

// CreditCost returns the per-request credit cost of a tier. Unknown tier
// strings charge the normal rate. Defaults can be overridden through the
// TIER_CREDIT_COSTS settings key.
func CreditCost(tier string) int64 {
	costs := creditCosts()
	if cost, ok := costs[tier]; ok && cost > 0 {
		return cost
	}
	return costs[models.TierNormal]
}

// creditCosts merges settings overrides over the built-in cost table.
func creditCosts() map[string]int64 {
	costs := map[string]int64{
		models.TierEco:     defaultEcoCredits,
		models.TierNormal:  defaultNormalCredits,
		models.TierPremium: defaultPremiumCredits,
	}

	raw, ok := settings.DBConfigValue(settings.TierCreditCostsKey)
	if !ok || len(raw) == 0 {
		return costs
	}
	var override map[string]int64
	if errUnmarshal := json.Unmarshal(raw, &override); errUnmarshal != nil {
		return costs
	}
	for tier, cost := range override {
		if cost > 0 {
			costs[tier] = cost
		}
	}
	return costs
}

// EstimateCost computes a reference USD cost for a request from the model's
// per-1k token prices.
func EstimateCost(info Info, inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1000 * info.CostPer1kInput
	outputCost := float64(outputTokens) / 1000 * info.CostPer1kOutput
	return inputCost + outputCost
}
