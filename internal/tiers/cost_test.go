package tiers

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/polydev-ai/quotaengine/internal/models"
	"github.com/polydev-ai/quotaengine/internal/settings"
)

func TestCreditCostDefaults(t *testing.T) {
	cases := map[string]int64{
		models.TierEco:     1,
		models.TierNormal:  4,
		models.TierPremium: 20,
		"mystery":          4,
		"":                 4,
	}
	for tier, want := range cases {
		if got := CreditCost(tier); got != want {
			t.Fatalf("CreditCost(%q) = %d, want %d", tier, got, want)
		}
	}
}

func TestCreditCostSettingsOverride(t *testing.T) {
	settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		settings.TierCreditCostsKey: json.RawMessage(`{"premium": 25, "eco": 0}`),
	})
	t.Cleanup(func() {
		settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{})
	})

	if got := CreditCost(models.TierPremium); got != 25 {
		t.Fatalf("overridden premium = %d, want 25", got)
	}
	// A non-positive override keeps the built-in rate.
	if got := CreditCost(models.TierEco); got != 1 {
		t.Fatalf("eco = %d, want 1", got)
	}
	if got := CreditCost(models.TierNormal); got != 4 {
		t.Fatalf("normal = %d, want 4", got)
	}
}

func TestEstimateCost(t *testing.T) {
	info := Info{CostPer1kInput: 0.3, CostPer1kOutput: 2.5}
	got := EstimateCost(info, 2000, 1000)
	want := 0.6 + 2.5
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("EstimateCost = %v, want %v", got, want)
	}

	if got := EstimateCost(Info{}, 5000, 5000); got != 0 {
		t.Fatalf("zero-priced model cost = %v, want 0", got)
	}
}
