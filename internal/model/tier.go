package model

// Tier is a named subscription level.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
	TierVIP      Tier = "vip"
	TierUltimate Tier = "ultimate"
)

// TierLimits is the maximum number of favorite tickers per tier.
var TierLimits = map[Tier]int{
	TierFree:     0,
	TierStandard: 5,
	TierPremium:  20,
	TierVIP:      50,
	TierUltimate: 100,
}

// Limit returns the favorite ticker limit for the tier. Unknown tiers get the free limit.
func (t Tier) Limit() int {
	return TierLimits[t]
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, ok := TierLimits[t]
	return ok
}

// ParseTier maps a tier name to a Tier, defaulting to TierFree.
func ParseTier(s string) Tier {
	t := Tier(s)
	if !t.Valid() {
		return TierFree
	}
	return t
}

// Subscription statuses written by the reconciler itself. Any other Stripe
// status is stored verbatim.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)
