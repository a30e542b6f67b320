package dto

import "time"

type FavoriteTickerDTO struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name,omitempty"`
	DailyUpdates bool   `json:"daily_updates"`
}

// SubscriptionResponseDTO is returned by GET /users/me/subscription
type SubscriptionResponseDTO struct {
	UserID              string              `json:"user_id"`
	SubscriptionID      *string             `json:"subscription_id"`
	SubscriptionStatus  string              `json:"subscription_status"`
	SubscriptionTier    string              `json:"subscription_tier"`
	CurrentPeriodEnd    *time.Time          `json:"current_period_end"`
	FavoriteTickers     []FavoriteTickerDTO `json:"favorite_tickers"`
	FavoriteTickerLimit int                 `json:"favorite_ticker_limit"`
	UpdatedAt           *time.Time          `json:"updated_at,omitempty"`
}

// WebhookAckDTO acknowledges a webhook delivery to Stripe.
type WebhookAckDTO struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}
