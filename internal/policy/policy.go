package policy

// Tier identifies a subscription plan.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Status is the billing state of a subscription. It is owned by the
// external billing integration; the metering engine only reads it.
type Status string

const (
	StatusFree     Status = "free"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Unlimited marks a ceiling with no enforcement.
const Unlimited int64 = -1

// Limits holds the per-metric ceilings for one tier.
type Limits struct {
	Tokens         int64
	MeetingSeconds int64
}

// Table maps tiers to ceilings. It has no mutable state; lookups never fail.
type Table struct {
	limits map[Tier]Limits
}

// Default returns the built-in ceiling table.
func Default() *Table {
	return NewTable(map[Tier]Limits{
		TierFree:       {Tokens: 50_000, MeetingSeconds: 1_800},
		TierPro:        {Tokens: 2_000_000, MeetingSeconds: 36_000},
		TierEnterprise: {Tokens: Unlimited, MeetingSeconds: Unlimited},
	})
}

// NewTable builds a table from explicit ceilings. The free tier entry is the
// fallback for unknown tiers, so a table without one gets zero ceilings for
// unknown tiers.
func NewTable(limits map[Tier]Limits) *Table {
	m := make(map[Tier]Limits, len(limits))
	for tier, l := range limits {
		m[tier] = l
	}
	return &Table{limits: m}
}

// EffectiveTier resolves the tier that actually applies: a past_due or
// canceled subscription is treated as free until it returns to active, and
// unknown tiers default to free.
func EffectiveTier(tier Tier, status Status) Tier {
	if status == StatusPastDue || status == StatusCanceled {
		return TierFree
	}
	switch tier {
	case TierFree, TierPro, TierEnterprise:
		return tier
	default:
		return TierFree
	}
}

// LimitsFor returns the ceilings in effect for a tier/status pair.
func (t *Table) LimitsFor(tier Tier, status Status) Limits {
	effective := EffectiveTier(tier, status)
	if l, ok := t.limits[effective]; ok {
		return l
	}
	return t.limits[TierFree]
}
