package model

import "time"

// SubscriptionRecord is the per-user entitlement document kept in sync with Stripe.
type SubscriptionRecord struct {
	UserID             string           `firestore:"-" db:"user_id" json:"user_id"`
	SubscriptionID     *string          `firestore:"subscriptionId" db:"subscription_id" json:"subscription_id,omitempty"`
	SubscriptionStatus string           `firestore:"subscriptionStatus" db:"subscription_status" json:"subscription_status"`
	SubscriptionTier   Tier             `firestore:"subscriptionTier" db:"subscription_tier" json:"subscription_tier"`
	CurrentPeriodEnd   *time.Time       `firestore:"currentPeriodEnd" db:"current_period_end" json:"current_period_end,omitempty"`
	FavoriteTickers    []FavoriteTicker `firestore:"favoriteTickers" db:"favorite_tickers" json:"favorite_tickers"`
	UpdatedAt          time.Time        `firestore:"updatedAt" db:"updated_at" json:"updated_at"`
}

// FavoriteTicker is a symbol the user tracks, optionally with daily update notifications.
type FavoriteTicker struct {
	Symbol       string `firestore:"symbol" json:"symbol"`
	Name         string `firestore:"name,omitempty" json:"name,omitempty"`
	DailyUpdates bool   `firestore:"dailyUpdates" json:"dailyUpdates"`
}

// NewFreeRecord is what an absent record is treated as.
func NewFreeRecord(userID string) *SubscriptionRecord {
	return &SubscriptionRecord{
		UserID:           userID,
		SubscriptionTier: TierFree,
		FavoriteTickers:  []FavoriteTicker{},
	}
}

// SubscriptionUpdate is a partial write merged into a SubscriptionRecord.
// Status, Tier and UpdatedAt are always written. When Billing is nil the
// remaining fields are left untouched.
type SubscriptionUpdate struct {
	Status    string
	Tier      Tier
	UpdatedAt time.Time
	Billing   *BillingFields
}

// BillingFields are the fields a full reconciliation writes in addition to status and tier.
type BillingFields struct {
	SubscriptionID   *string
	CurrentPeriodEnd *time.Time
	FavoriteTickers  []FavoriteTicker
}
