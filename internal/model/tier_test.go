package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierLimit(t *testing.T) {
	tests := []struct {
		tier Tier
		want int
	}{
		{TierFree, 0},
		{TierStandard, 5},
		{TierPremium, 20},
		{TierVIP, 50},
		{TierUltimate, 100},
		{Tier("bogus-tier"), 0},
		{Tier(""), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Limit())
		})
	}
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierPremium, ParseTier("premium"))
	assert.Equal(t, TierVIP, ParseTier("vip"))
	assert.Equal(t, TierFree, ParseTier("Premium"))
	assert.Equal(t, TierFree, ParseTier(""))
	assert.Equal(t, TierFree, ParseTier("gold"))
}

func TestNewFreeRecord(t *testing.T) {
	rec := NewFreeRecord("user-1")
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, TierFree, rec.SubscriptionTier)
	assert.NotNil(t, rec.FavoriteTickers)
	assert.Empty(t, rec.FavoriteTickers)
}
