package main

import (
	"testing"

	"veloryn/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapping(t *testing.T) {
	m, err := parseMapping(" price_123 = Premium ")
	require.NoError(t, err)
	assert.Equal(t, "price_123", m.priceID)
	assert.Equal(t, model.TierPremium, m.tier)

	for _, bad := range []string{"price_123", "=premium", "price_123=", "price_123=gold"} {
		_, err := parseMapping(bad)
		assert.Error(t, err, bad)
	}
}

func TestMappingFlag(t *testing.T) {
	var f mappingFlag
	require.NoError(t, f.Set("price_a=standard"))
	require.NoError(t, f.Set("price_b=ultimate"))
	assert.Equal(t, "price_a=standard,price_b=ultimate", f.String())
	assert.Error(t, f.Set("nope"))
	assert.Len(t, f, 2)
}
