package service

import (
	"context"
	"errors"
	"testing"

	"veloryn/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionService_GetSubscription(t *testing.T) {
	store := newFakeStore()
	svc := NewSubscriptionService(store, zerolog.Nop())

	rec, err := svc.GetSubscription(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, rec.SubscriptionTier)
	assert.Empty(t, rec.FavoriteTickers)
	assert.Equal(t, "new-user", rec.UserID)

	store.records["user-1"] = &model.SubscriptionRecord{UserID: "user-1", SubscriptionTier: model.TierVIP}
	rec, err = svc.GetSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.TierVIP, rec.SubscriptionTier)

	store.getErr = errors.New("unavailable")
	_, err = svc.GetSubscription(context.Background(), "user-1")
	assert.Error(t, err)
}
