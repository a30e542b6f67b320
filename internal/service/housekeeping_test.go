package service

import (
	"testing"

	"veloryn/internal/model"

	"github.com/stretchr/testify/assert"
)

func ticker(symbol string, daily bool) model.FavoriteTicker {
	return model.FavoriteTicker{Symbol: symbol, DailyUpdates: daily}
}

func symbols(tickers []model.FavoriteTicker) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, t.Symbol)
	}
	return out
}

func TestTrimFavoriteTickers_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		oldTier model.Tier
		newTier model.Tier
		input   []model.FavoriteTicker
		want    []string
	}{
		{
			name:    "standard to free drops everything",
			oldTier: model.TierStandard,
			newTier: model.TierFree,
			input: []model.FavoriteTicker{
				ticker("AAPL", true), ticker("TSLA", false), ticker("MSFT", true), ticker("GOOG", false), ticker("AMZN", false),
			},
			want: []string{},
		},
		{
			name:    "free to premium with empty list",
			oldTier: model.TierFree,
			newTier: model.TierPremium,
			input:   []model.FavoriteTicker{},
			want:    []string{},
		},
		{
			name:    "premium to standard keeps daily first",
			oldTier: model.TierPremium,
			newTier: model.TierStandard,
			input: []model.FavoriteTicker{
				ticker("D", false), ticker("A", true), ticker("E", false), ticker("B", true),
				ticker("F", false), ticker("C", true), ticker("G", false),
			},
			want: []string{"A", "B", "C", "D", "E"},
		},
		{
			name:    "premium to standard with two daily",
			oldTier: model.TierPremium,
			newTier: model.TierStandard,
			input: []model.FavoriteTicker{
				ticker("C", false), ticker("A", true), ticker("D", false), ticker("E", false),
				ticker("B", true), ticker("F", false), ticker("G", false),
			},
			want: []string{"A", "B", "C", "D", "E"},
		},
		{
			name:    "more daily entries than the limit",
			oldTier: model.TierPremium,
			newTier: model.TierStandard,
			input: []model.FavoriteTicker{
				ticker("X", false), ticker("A", true), ticker("B", true), ticker("C", true),
				ticker("D", true), ticker("E", true), ticker("F", true),
			},
			want: []string{"A", "B", "C", "D", "E"},
		},
		{
			name:    "limit equal to count is untouched",
			oldTier: model.TierPremium,
			newTier: model.TierStandard,
			input: []model.FavoriteTicker{
				ticker("A", false), ticker("B", true), ticker("C", false), ticker("D", true), ticker("E", false),
			},
			want: []string{"A", "B", "C", "D", "E"},
		},
		{
			name:    "unknown tier has zero capacity",
			oldTier: model.TierVIP,
			newTier: model.Tier("bogus-tier"),
			input:   []model.FavoriteTicker{ticker("A", true), ticker("B", false)},
			want:    []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimFavoriteTickers(tt.oldTier, tt.newTier, tt.input)
			assert.Equal(t, tt.want, symbols(got))
			assert.LessOrEqual(t, len(got), tt.newTier.Limit())
		})
	}
}

func TestTrimFavoriteTickers_NoOpReturnsSameList(t *testing.T) {
	input := []model.FavoriteTicker{ticker("B", false), ticker("A", true)}

	got := TrimFavoriteTickers(model.TierStandard, model.TierPremium, input)

	assert.Equal(t, input, got)
	assert.Equal(t, []string{"B", "A"}, symbols(got))
}

func TestTrimFavoriteTickers_DoesNotMutateInput(t *testing.T) {
	input := []model.FavoriteTicker{ticker("A", false), ticker("B", true), ticker("C", false)}
	snapshot := append([]model.FavoriteTicker(nil), input...)

	_ = TrimFavoriteTickers(model.TierPremium, model.Tier("gold"), input)
	_ = TrimFavoriteTickers(model.TierPremium, model.TierFree, input)

	assert.Equal(t, snapshot, input)
}

// Exhaustive check of the limit and ordering properties over generated lists.
func TestTrimFavoriteTickers_Properties(t *testing.T) {
	tiers := []model.Tier{model.TierFree, model.TierStandard, model.TierPremium, model.TierVIP, model.TierUltimate, "bogus-tier"}
	for _, tier := range tiers {
		for n := 0; n <= 120; n += 7 {
			input := make([]model.FavoriteTicker, n)
			for i := range input {
				input[i] = model.FavoriteTicker{Symbol: string(rune('A'+i%26)) + string(rune('a'+i/26)), DailyUpdates: i%3 == 0}
			}

			got := TrimFavoriteTickers(model.TierUltimate, tier, input)

			limit := tier.Limit()
			assert.LessOrEqual(t, len(got), limit)
			if n <= limit {
				assert.Equal(t, input, got)
				continue
			}
			assert.Len(t, got, limit)

			keptPlain := false
			keptDaily := 0
			for _, e := range got {
				if !e.DailyUpdates {
					keptPlain = true
				} else {
					assert.False(t, keptPlain, "daily entry after a plain entry for tier %s, n=%d", tier, n)
					keptDaily++
				}
			}
			totalDaily := 0
			for _, e := range input {
				if e.DailyUpdates {
					totalDaily++
				}
			}
			if keptPlain {
				assert.Equal(t, totalDaily, keptDaily, "daily entry dropped while a plain one was kept")
			}
		}
	}
}

func TestDroppedSymbols(t *testing.T) {
	before := []model.FavoriteTicker{ticker("A", true), ticker("B", false), ticker("C", false)}
	after := []model.FavoriteTicker{ticker("A", true)}

	assert.Equal(t, []string{"B", "C"}, droppedSymbols(before, after))
	assert.Nil(t, droppedSymbols(before, before))
}
