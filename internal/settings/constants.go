package settings

// DB config keys and defaults.
const (
	// TierCreditCostsKey overrides per-tier credit costs as a JSON object,
	// e.g. {"eco":1,"normal":4,"premium":20}.
	TierCreditCostsKey = "TIER_CREDIT_COSTS"
	// ResetIntervalSecondsKey controls the monthly reset sweep interval.
	ResetIntervalSecondsKey = "RESET_INTERVAL_SECONDS"
	// DefaultPlanTierKey sets the plan assigned to newly provisioned users.
	DefaultPlanTierKey = "DEFAULT_PLAN_TIER"

	// DefaultResetIntervalSeconds is the fallback sweep interval (seconds).
	DefaultResetIntervalSeconds = 3600
	// DefaultPlanTier is the fallback provisioning plan.
	DefaultPlanTier = "free"
)
