package api

import (
	"time"

	"arby/internal/book"
	"arby/internal/persistence"
	"arby/internal/scanner"
	"arby/internal/wallet"
	"arby/pkg/types"
)

// Provider supplies the live state the dashboard reads. The engine
// constructs the concrete value; the api package only depends on this
// interface so it never reaches past the boundary into execution internals.
type Provider interface {
	Stats() *scanner.Stats
	Books() *book.Store
	Wallets() *wallet.Store
	History() *persistence.RecentSink
	Venues() []string
	Currencies() []string
	MarketKeys() [][2]string
	DryRun() bool
}

// BuildStatus assembles the /status payload from the route-score tracker.
func BuildStatus(p Provider) StatusSnapshot {
	snaps := p.Stats().All()
	routes := make([]RouteStatus, 0, len(snaps))
	for _, snap := range snaps {
		hist := p.Stats().Histogram(snap.Label)
		routes = append(routes, RouteStatus{
			Label:        snap.Label,
			Score:        snap.Score,
			HighestSeen:  p.Stats().HighestSeen(snap.Label),
			BuyExchange:  snap.BuyExchange,
			SellExchange: snap.SellExchange,
			BuyRate:      snap.BuyRate,
			SellRate:     snap.SellRate,
			Histogram:    hist,
		})
	}
	return StatusSnapshot{Ts: time.Now(), DryRun: p.DryRun(), Routes: routes}
}

// BuildOrderBooks reports every {exchange, market} the engine subscribed to.
func BuildOrderBooks(p Provider) []BookSnapshot {
	entries := p.Books().GetMany(p.MarketKeys())
	out := make([]BookSnapshot, 0, len(entries))
	for k, entry := range entries {
		bid, _ := entry.BestBid()
		ask, _ := entry.BestAsk()
		out = append(out, BookSnapshot{
			Exchange:   k[0],
			Market:     k[1],
			BestBid:    bid,
			BestAsk:    ask,
			LastUpdate: entry.LastUpdate,
			StaleMs:    time.Since(entry.LastUpdate).Milliseconds(),
		})
	}
	return out
}

// BuildWallets flattens the wallet store for every configured venue.
func BuildWallets(p Provider) []WalletSnapshot {
	var out []WalletSnapshot
	for _, venue := range p.Venues() {
		for _, cur := range p.Currencies() {
			w := p.Wallets().Get(venue, cur)
			if w.Total.IsZero() && w.Available.IsZero() && w.Reserved.IsZero() {
				continue
			}
			out = append(out, WalletSnapshot{Exchange: venue, Currency: cur, Available: w.Available, Reserved: w.Reserved, Total: w.Total})
		}
	}
	return out
}

// BuildOpportunities returns the recently recorded opportunity history.
func BuildOpportunities(p Provider) []types.Opportunity {
	return p.History().RecentOpportunities()
}

// BuildTrades returns the recently recorded filled order legs.
func BuildTrades(p Provider) []struct {
	OrderID string
	Leg     types.OrderLeg
} {
	return p.History().RecentLegs()
}
