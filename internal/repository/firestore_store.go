package repository

import (
	"context"
	"fmt"

	"veloryn/internal/model"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps one document per user in the users collection and the
// price to tier mapping in a single configuration document.
type FirestoreStore struct {
	client        *firestore.Client
	users         string
	tierConfigDoc string
}

// NewFirestoreStore wraps an existing Firestore client.
func NewFirestoreStore(client *firestore.Client, usersCollection, tierConfigDoc string) *FirestoreStore {
	return &FirestoreStore{client: client, users: usersCollection, tierConfigDoc: tierConfigDoc}
}

func (s *FirestoreStore) GetSubscriptionRecord(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	snap, err := s.client.Collection(s.users).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user document %s: %w", userID, err)
	}
	var rec model.SubscriptionRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode user document %s: %w", userID, err)
	}
	rec.UserID = userID
	if rec.SubscriptionTier == "" {
		rec.SubscriptionTier = model.TierFree
	}
	if rec.FavoriteTickers == nil {
		rec.FavoriteTickers = []model.FavoriteTicker{}
	}
	return &rec, nil
}

func (s *FirestoreStore) UpsertSubscriptionRecord(ctx context.Context, userID string, u model.SubscriptionUpdate) error {
	data := updateFields(u)
	if _, err := s.client.Collection(s.users).Doc(userID).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("merge user document %s: %w", userID, err)
	}
	return nil
}

func (s *FirestoreStore) GetPriceTierMapping(ctx context.Context) (map[string]string, error) {
	snap, err := s.client.Doc(s.tierConfigDoc).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("fetch tier config %s: %w", s.tierConfigDoc, err)
	}
	return stringFields(snap.Data()), nil
}

func (s *FirestoreStore) SetPriceTier(ctx context.Context, priceID, tier string) error {
	data := map[string]interface{}{priceID: tier}
	if _, err := s.client.Doc(s.tierConfigDoc).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("set tier for price %s: %w", priceID, err)
	}
	return nil
}

// updateFields maps an update to the document fields a merge write touches.
func updateFields(u model.SubscriptionUpdate) map[string]interface{} {
	data := map[string]interface{}{
		"subscriptionStatus": u.Status,
		"subscriptionTier":   string(u.Tier),
		"updatedAt":          u.UpdatedAt,
	}
	if u.Billing == nil {
		return data
	}
	if u.Billing.SubscriptionID != nil {
		data["subscriptionId"] = *u.Billing.SubscriptionID
	} else {
		data["subscriptionId"] = nil
	}
	if u.Billing.CurrentPeriodEnd != nil {
		data["currentPeriodEnd"] = *u.Billing.CurrentPeriodEnd
	} else {
		data["currentPeriodEnd"] = nil
	}
	tickers := u.Billing.FavoriteTickers
	if tickers == nil {
		tickers = []model.FavoriteTicker{}
	}
	data["favoriteTickers"] = tickers
	return data
}

// stringFields keeps the string-valued entries of a document.
func stringFields(raw map[string]interface{}) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
