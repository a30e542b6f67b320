package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"veloryn/internal/model"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreStoreWithEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "veloryn-test")
	require.NoError(t, err)
	defer client.Close()

	store := NewFirestoreStore(client, "users-"+time.Now().Format("150405.000000"), "config/tiers-test")
	userID := "user-emulator"

	rec, err := store.GetSubscriptionRecord(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, rec)

	subID := "sub_1"
	now := time.Now().UTC().Truncate(time.Millisecond)
	err = store.UpsertSubscriptionRecord(ctx, userID, model.SubscriptionUpdate{
		Status:    model.StatusActive,
		Tier:      model.TierStandard,
		UpdatedAt: now,
		Billing: &model.BillingFields{
			SubscriptionID:  &subID,
			FavoriteTickers: []model.FavoriteTicker{{Symbol: "AAPL", DailyUpdates: true}},
		},
	})
	require.NoError(t, err)

	// A status-only merge must keep the favorite tickers.
	err = store.UpsertSubscriptionRecord(ctx, userID, model.SubscriptionUpdate{
		Status:    model.StatusPastDue,
		Tier:      model.TierFree,
		UpdatedAt: now,
	})
	require.NoError(t, err)

	rec, err = store.GetSubscriptionRecord(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.StatusPastDue, rec.SubscriptionStatus)
	assert.Equal(t, model.TierFree, rec.SubscriptionTier)
	require.NotNil(t, rec.SubscriptionID)
	assert.Equal(t, "sub_1", *rec.SubscriptionID)
	assert.Equal(t, []model.FavoriteTicker{{Symbol: "AAPL", DailyUpdates: true}}, rec.FavoriteTickers)

	require.NoError(t, store.SetPriceTier(ctx, "price_std", "standard"))
	mapping, err := store.GetPriceTierMapping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "standard", mapping["price_std"])
}
