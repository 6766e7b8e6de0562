// Package route enumerates the three tradable route families — Direct,
// MultiLeg, Cross — from a set of currency roles and the per-venue
// discovered-pair intersection, per the route builder specification.
package route

import (
	"sort"
	"sync"

	"arby/pkg/types"
)

// PairSet reports, for a venue pair's intersection, whether a market is
// active (listed and tradable on both venues).
type PairSet map[string]bool

// Has reports whether market m is active.
func (p PairSet) Has(m types.Market) bool { return p[m.ID()] }

// Builder enumerates routes from currency roles, discovered pairs, and an
// optional per-trade base whitelist. It is hot-reloadable: Rebuild can be
// called any time a control-plane signal asks for a fresh route set,
// without restarting the adapters that feed it.
type Builder struct {
	mu     sync.RWMutex
	routes []types.Route
}

// NewBuilder creates an empty builder; call Rebuild to populate routes.
func NewBuilder() *Builder {
	return &Builder{}
}

// Routes returns the current route set. Safe to call concurrently with Rebuild.
func (b *Builder) Routes() []types.Route {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.Route, len(b.routes))
	copy(out, b.routes)
	return out
}

// Rebuild recomputes the route set from the given roles, active-pair set,
// and optional per-trade base whitelist (trade currency -> allowed bases;
// nil or empty means no restriction for that trade currency). Ordering is
// deterministic: currencies and bases are iterated in sorted order so the
// resulting slice is stable across ticks given the same inputs.
func (b *Builder) Rebuild(roles map[string]types.CurrencyRole, active PairSet, baseWhitelist map[string][]string) {
	currencies := sortedKeys(roles)

	var routes []types.Route
	routes = append(routes, buildDirect(currencies, roles, active)...)
	routes = append(routes, buildMultiLeg(currencies, roles, active, baseWhitelist)...)
	routes = append(routes, buildCross(currencies, roles, active, baseWhitelist)...)

	b.mu.Lock()
	b.routes = routes
	b.mu.Unlock()
}

// buildDirect enumerates every market active on both venues, for every
// (trade, base) pair with trade != base where trade can act as trade and
// base can act as base, per each one's role.
func buildDirect(currencies []string, roles map[string]types.CurrencyRole, active PairSet) []types.Route {
	var routes []types.Route
	for _, trade := range currencies {
		if !canTrade(roles[trade]) {
			continue
		}
		for _, base := range currencies {
			if base == trade || !canBase(roles[base]) {
				continue
			}
			m := types.Market{Trade: trade, Base: base}
			if active.Has(m) {
				routes = append(routes, types.Route{Kind: types.RouteDirect, Market: m})
			}
		}
	}
	return routes
}

// buildMultiLeg enumerates, for every trade currency, every ordered pair
// (buy_base, sell_base) of distinct base currencies such that trade||buy_base,
// trade||sell_base, and sell_base||buy_base are all active.
func buildMultiLeg(currencies []string, roles map[string]types.CurrencyRole, active PairSet, whitelist map[string][]string) []types.Route {
	var routes []types.Route
	for _, trade := range currencies {
		if !canTrade(roles[trade]) {
			continue
		}
		bases := allowedBases(currencies, roles, trade, whitelist)
		for _, buyBase := range bases {
			for _, sellBase := range bases {
				if buyBase == sellBase {
					continue
				}
				buyMarket := types.Market{Trade: trade, Base: buyBase}
				sellMarket := types.Market{Trade: trade, Base: sellBase}
				crossPair := types.Market{Trade: sellBase, Base: buyBase}
				if active.Has(buyMarket) && active.Has(sellMarket) && active.Has(crossPair) {
					routes = append(routes, types.Route{
						Kind:       types.RouteMultiLeg,
						BuyMarket:  buyMarket,
						SellMarket: sellMarket,
						CrossPair:  crossPair,
						Trade:      trade,
						BuyBase:    buyBase,
						SellBase:   sellBase,
					})
				}
			}
		}
	}
	return routes
}

// buildCross enumerates every unordered pair {trade_x, trade_y} of distinct
// trade currencies and every base distinct from both, including it if
// trade_x||base and trade_y||base are both active.
func buildCross(currencies []string, roles map[string]types.CurrencyRole, active PairSet, whitelist map[string][]string) []types.Route {
	var routes []types.Route
	for i, tradeX := range currencies {
		if !canTrade(roles[tradeX]) {
			continue
		}
		for _, tradeY := range currencies[i+1:] {
			if !canTrade(roles[tradeY]) {
				continue
			}
			for _, base := range currencies {
				if base == tradeX || base == tradeY || !canBase(roles[base]) {
					continue
				}
				if !baseAllowed(whitelist, tradeX, base) || !baseAllowed(whitelist, tradeY, base) {
					continue
				}
				marketX := types.Market{Trade: tradeX, Base: base}
				marketY := types.Market{Trade: tradeY, Base: base}
				if active.Has(marketX) && active.Has(marketY) {
					routes = append(routes, types.Route{
						Kind:    types.RouteCross,
						TradeX:  tradeX,
						TradeY:  tradeY,
						Base:    base,
						MarketX: marketX,
						MarketY: marketY,
					})
				}
			}
		}
	}
	return routes
}

func canTrade(r types.CurrencyRole) bool {
	return r == types.BaseAndTrade || r == types.TradeOnly
}

func canBase(r types.CurrencyRole) bool {
	return r == types.BaseOnly || r == types.BaseAndTrade
}

func allowedBases(currencies []string, roles map[string]types.CurrencyRole, trade string, whitelist map[string][]string) []string {
	var bases []string
	for _, base := range currencies {
		if base == trade || !canBase(roles[base]) {
			continue
		}
		if baseAllowed(whitelist, trade, base) {
			bases = append(bases, base)
		}
	}
	return bases
}

func baseAllowed(whitelist map[string][]string, trade, base string) bool {
	allowed, ok := whitelist[trade]
	if !ok || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == base {
			return true
		}
	}
	return false
}

func sortedKeys(roles map[string]types.CurrencyRole) []string {
	keys := make([]string, 0, len(roles))
	for k := range roles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
