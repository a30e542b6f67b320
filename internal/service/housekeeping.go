package service

import "veloryn/internal/model"

// TrimFavoriteTickers fits a favorite ticker list into the limit of newTier.
// Only the new tier matters; the previous tier is accepted so call sites read
// as a transition.
//
// A list already within the limit is returned as is, so upgrades and
// lateral moves never touch it. Otherwise entries with daily updates are
// moved ahead of the rest, keeping relative order inside both groups, and
// the list is cut at the limit. Unknown tiers have a limit of zero.
func TrimFavoriteTickers(_, newTier model.Tier, tickers []model.FavoriteTicker) []model.FavoriteTicker {
	limit := newTier.Limit()
	if len(tickers) <= limit {
		return tickers
	}

	kept := make([]model.FavoriteTicker, 0, limit)
	for _, t := range tickers {
		if len(kept) == limit {
			break
		}
		if t.DailyUpdates {
			kept = append(kept, t)
		}
	}
	for _, t := range tickers {
		if len(kept) == limit {
			break
		}
		if !t.DailyUpdates {
			kept = append(kept, t)
		}
	}
	return kept
}

// droppedSymbols lists the symbols present in before but missing from after.
func droppedSymbols(before, after []model.FavoriteTicker) []string {
	keep := make(map[string]struct{}, len(after))
	for _, t := range after {
		keep[t.Symbol] = struct{}{}
	}
	var dropped []string
	for _, t := range before {
		if _, ok := keep[t.Symbol]; !ok {
			dropped = append(dropped, t.Symbol)
		}
	}
	return dropped
}
