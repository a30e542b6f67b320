package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"veloryn/internal/model"
)

// SubscriptionRepository reads and merge-writes user subscription records.
type SubscriptionRepository interface {
	// GetSubscriptionRecord returns nil, nil when the user has no record yet.
	GetSubscriptionRecord(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
	// UpsertSubscriptionRecord creates the record or merges the update into it.
	// Fields not carried by the update are left untouched.
	UpsertSubscriptionRecord(ctx context.Context, userID string, u model.SubscriptionUpdate) error
}

// TierConfigRepository exposes the Stripe price ID to tier name mapping.
type TierConfigRepository interface {
	GetPriceTierMapping(ctx context.Context) (map[string]string, error)
	SetPriceTier(ctx context.Context, priceID, tier string) error
}

// PostgresStore keeps subscription records in the user_subscriptions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns the Postgres-backed record store. It also
// serves the tier mapping from the tier_price_mappings table.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (r *PostgresStore) GetSubscriptionRecord(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	const q = `
        SELECT user_id, subscription_id, subscription_status, subscription_tier, current_period_end, favorite_tickers, updated_at
        FROM user_subscriptions
        WHERE user_id = $1
    `
	var (
		rec       model.SubscriptionRecord
		subID     sql.NullString
		periodEnd sql.NullTime
		tier      string
		rawTicker []byte
	)
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&rec.UserID,
		&subID,
		&rec.SubscriptionStatus,
		&tier,
		&periodEnd,
		&rawTicker,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription record for user %s: %w", userID, err)
	}
	if subID.Valid {
		rec.SubscriptionID = &subID.String
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		rec.CurrentPeriodEnd = &t
	}
	rec.SubscriptionTier = model.Tier(tier)
	rec.FavoriteTickers = []model.FavoriteTicker{}
	if len(rawTicker) > 0 {
		if err := json.Unmarshal(rawTicker, &rec.FavoriteTickers); err != nil {
			return nil, fmt.Errorf("unmarshal favorite_tickers for user %s: %w", userID, err)
		}
	}
	return &rec, nil
}

func (r *PostgresStore) UpsertSubscriptionRecord(ctx context.Context, userID string, u model.SubscriptionUpdate) error {
	var q string
	var args []interface{}

	if u.Billing == nil {
		q = `
			INSERT INTO user_subscriptions (user_id, subscription_status, subscription_tier, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET subscription_status = EXCLUDED.subscription_status,
				subscription_tier = EXCLUDED.subscription_tier,
				updated_at = EXCLUDED.updated_at;
		`
		args = []interface{}{userID, u.Status, string(u.Tier), u.UpdatedAt}
	} else {
		tickers := u.Billing.FavoriteTickers
		if tickers == nil {
			tickers = []model.FavoriteTicker{}
		}
		raw, err := json.Marshal(tickers)
		if err != nil {
			return fmt.Errorf("marshal favorite_tickers for user %s: %w", userID, err)
		}
		var subID, periodEnd interface{}
		if u.Billing.SubscriptionID != nil {
			subID = *u.Billing.SubscriptionID
		}
		if u.Billing.CurrentPeriodEnd != nil {
			periodEnd = *u.Billing.CurrentPeriodEnd
		}
		q = `
			INSERT INTO user_subscriptions (user_id, subscription_id, subscription_status, subscription_tier, current_period_end, favorite_tickers, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id) DO UPDATE
			SET subscription_id = EXCLUDED.subscription_id,
				subscription_status = EXCLUDED.subscription_status,
				subscription_tier = EXCLUDED.subscription_tier,
				current_period_end = EXCLUDED.current_period_end,
				favorite_tickers = EXCLUDED.favorite_tickers,
				updated_at = EXCLUDED.updated_at;
		`
		args = []interface{}{userID, subID, u.Status, string(u.Tier), periodEnd, string(raw), u.UpdatedAt}
	}

	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert subscription record for user %s: %w", userID, err)
	}
	return nil
}

func (r *PostgresStore) GetPriceTierMapping(ctx context.Context) (map[string]string, error) {
	const q = `SELECT price_id, tier FROM tier_price_mappings`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch tier price mappings: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var priceID, tier string
		if err := rows.Scan(&priceID, &tier); err != nil {
			return nil, fmt.Errorf("scan tier price mapping: %w", err)
		}
		mapping[priceID] = tier
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tier price mappings: %w", err)
	}
	return mapping, nil
}

func (r *PostgresStore) SetPriceTier(ctx context.Context, priceID, tier string) error {
	const q = `
		INSERT INTO tier_price_mappings (price_id, tier)
		VALUES ($1, $2)
		ON CONFLICT (price_id) DO UPDATE SET tier = EXCLUDED.tier;
	`
	if _, err := r.db.ExecContext(ctx, q, priceID, tier); err != nil {
		return fmt.Errorf("set tier for price %s: %w", priceID, err)
	}
	return nil
}
