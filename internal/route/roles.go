package route

import "arby/pkg/types"

// DeriveRoles assigns each configured currency a CurrencyRole by intersecting
// every venue's discovered pairs against the selected currency set: a
// currency seen as a market's Trade side is TRADE_ONLY, as a Base side is
// BASE_ONLY, as both is BASE_AND_TRADE. A currency that appears in neither
// side of any discovered market is dropped (it cannot anchor any route).
func DeriveRoles(currencies []string, discoveredByVenue []map[string]types.MarketInfo) map[string]types.CurrencyRole {
	selected := make(map[string]bool, len(currencies))
	for _, c := range currencies {
		selected[c] = true
	}

	asTrade := make(map[string]bool)
	asBase := make(map[string]bool)

	for _, discovered := range discoveredByVenue {
		for id := range discovered {
			m, ok := splitMarketID(id, selected)
			if !ok {
				continue
			}
			asTrade[m.Trade] = true
			asBase[m.Base] = true
		}
	}

	roles := make(map[string]types.CurrencyRole)
	for c := range selected {
		trade, base := asTrade[c], asBase[c]
		switch {
		case trade && base:
			roles[c] = types.BaseAndTrade
		case trade:
			roles[c] = types.TradeOnly
		case base:
			roles[c] = types.BaseOnly
		}
	}
	return roles
}

// splitMarketID recovers a Market's Trade/Base split from its concatenated
// ID by checking every selected-currency prefix, since the ID carries no
// separator. Ambiguous or unrecognized IDs are skipped.
func splitMarketID(id string, selected map[string]bool) (types.Market, bool) {
	var found types.Market
	matches := 0
	for trade := range selected {
		if len(id) <= len(trade) || id[:len(trade)] != trade {
			continue
		}
		base := id[len(trade):]
		if selected[base] {
			found = types.Market{Trade: trade, Base: base}
			matches++
		}
	}
	if matches != 1 {
		return types.Market{}, false
	}
	return found, true
}

// BuildActivePairs intersects discovered markets across all venues: a
// market is active only if every venue in discoveredByVenue lists it.
func BuildActivePairs(discoveredByVenue []map[string]types.MarketInfo) PairSet {
	active := PairSet{}
	if len(discoveredByVenue) == 0 {
		return active
	}
	for id := range discoveredByVenue[0] {
		onAll := true
		for _, d := range discoveredByVenue[1:] {
			if _, ok := d[id]; !ok {
				onAll = false
				break
			}
		}
		if onAll {
			active[id] = true
		}
	}
	return active
}
