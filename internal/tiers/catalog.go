package tiers

import "github.com/polydev-ai/quotaengine/internal/models"

// Info is immutable tier reference data for one model.
type Info struct {
	Provider        string  `json:"provider"`
	ModelID         string  `json:"model_id"`
	Tier            string  `json:"tier"`
	DisplayName     string  `json:"display_name"`
	CostPer1kInput  float64 `json:"cost_per_1k_input"`
	CostPer1kOutput float64 `json:"cost_per_1k_output"`
	RoutingStrategy string  `json:"routing_strategy"`
}

// catalog is the in-process tier table, the first resolver consulted. Costs
// are informational reference prices in USD per 1k tokens.
var catalog = map[string]Info{
	"gpt-5": {
		Provider:        "openai",
		ModelID:         "gpt-5",
		Tier:            models.TierPremium,
		DisplayName:     "GPT-5",
		CostPer1kInput:  1.25,
		CostPer1kOutput: 10,
		RoutingStrategy: models.RoutingAPIKey,
	},
	"claude-opus-4-1": {
		Provider:        "anthropic",
		ModelID:         "claude-opus-4-1",
		Tier:            models.TierPremium,
		DisplayName:     "Claude Opus 4.1",
		CostPer1kInput:  15,
		CostPer1kOutput: 75,
		RoutingStrategy: models.RoutingMixed,
	},
	"gemini-2.5-pro": {
		Provider:        "google",
		ModelID:         "gemini-2.5-pro",
		Tier:            models.TierPremium,
		DisplayName:     "Gemini 2.5 Pro",
		CostPer1kInput:  1.25,
		CostPer1kOutput: 10,
		RoutingStrategy: models.RoutingAPIKey,
	},
	"claude-sonnet-4": {
		Provider:        "anthropic",
		ModelID:         "claude-sonnet-4",
		Tier:            models.TierNormal,
		DisplayName:     "Claude Sonnet 4",
		CostPer1kInput:  3,
		CostPer1kOutput: 15,
		RoutingStrategy: models.RoutingMixed,
	},
	"gpt-5-mini": {
		Provider:        "openai",
		ModelID:         "gpt-5-mini",
		Tier:            models.TierNormal,
		DisplayName:     "GPT-5 Mini",
		CostPer1kInput:  0.15,
		CostPer1kOutput: 0.6,
		RoutingStrategy: models.RoutingAPIKey,
	},
	"grok-4.1-fast-reasoning": {
		Provider:        "xai",
		ModelID:         "grok-4.1-fast-reasoning",
		Tier:            models.TierNormal,
		DisplayName:     "Grok 4.1 Fast Reasoning",
		CostPer1kInput:  0.05,
		CostPer1kOutput: 0.2,
		RoutingStrategy: models.RoutingAPIKey,
	},
	"gemini-2.5-flash": {
		Provider:        "google",
		ModelID:         "gemini-2.5-flash",
		Tier:            models.TierEco,
		DisplayName:     "Gemini 2.5 Flash",
		CostPer1kInput:  0.075,
		CostPer1kOutput: 0.3,
		RoutingStrategy: models.RoutingAPIKey,
	},
	"glm-4.7": {
		Provider:        "zhipu",
		ModelID:         "glm-4.7",
		Tier:            models.TierEco,
		DisplayName:     "GLM-4.7",
		CostPer1kInput:  0.0006,
		CostPer1kOutput: 0.0022,
		RoutingStrategy: models.RoutingUnlimitedAccount,
	},
}

// CatalogModels returns all statically registered models.
func CatalogModels() []Info {
	out := make([]Info, 0, len(catalog))
	for _, info := range catalog {
		out = append(out, info)
	}
	return out
}
