package api

import (
	"testing"

	"github.com/shopspring/decimal"

	"arby/internal/book"
	"arby/internal/persistence"
	"arby/internal/scanner"
	"arby/internal/wallet"
	"arby/pkg/types"
)

type fakeProvider struct {
	stats      *scanner.Stats
	books      *book.Store
	wallets    *wallet.Store
	history    *persistence.RecentSink
	venues     []string
	currencies []string
	keys       [][2]string
	dryRun     bool
}

func (f *fakeProvider) Stats() *scanner.Stats            { return f.stats }
func (f *fakeProvider) Books() *book.Store                { return f.books }
func (f *fakeProvider) Wallets() *wallet.Store             { return f.wallets }
func (f *fakeProvider) History() *persistence.RecentSink   { return f.history }
func (f *fakeProvider) Venues() []string                   { return f.venues }
func (f *fakeProvider) Currencies() []string               { return f.currencies }
func (f *fakeProvider) MarketKeys() [][2]string            { return f.keys }
func (f *fakeProvider) DryRun() bool                       { return f.dryRun }

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		stats:      scanner.NewStats(),
		books:      book.NewStore(10),
		wallets:    wallet.NewStore(),
		history:    persistence.NewRecentSink(nil, 10),
		venues:     []string{"binance", "kraken"},
		currencies: []string{"ETH", "BTC"},
		dryRun:     true,
	}
}

func TestBuildStatusReflectsRecordedSnapshots(t *testing.T) {
	p := newFakeProvider()
	p.stats.Record(scanner.RouteSnapshot{Label: "binance/kraken ETHBTC", Score: decimal.RequireFromString("0.01")})

	status := BuildStatus(p)
	if !status.DryRun {
		t.Error("expected DryRun true from the provider")
	}
	if len(status.Routes) != 1 {
		t.Fatalf("Routes = %d, want 1", len(status.Routes))
	}
	if status.Routes[0].Label != "binance/kraken ETHBTC" {
		t.Errorf("Label = %s, want binance/kraken ETHBTC", status.Routes[0].Label)
	}
}

func TestBuildOrderBooksOnlyReturnsSubscribedKeys(t *testing.T) {
	p := newFakeProvider()
	p.books.Snapshot("binance", "ETHBTC", []types.PriceLevel{{Price: decimal.RequireFromString("0.065"), Qty: decimal.RequireFromString("1")}}, nil)
	p.books.Snapshot("kraken", "XRPBTC", []types.PriceLevel{{Price: decimal.RequireFromString("0.3"), Qty: decimal.RequireFromString("1")}}, nil)
	p.keys = [][2]string{{"binance", "ETHBTC"}}

	got := BuildOrderBooks(p)
	if len(got) != 1 {
		t.Fatalf("got %d books, want 1 (only the subscribed key)", len(got))
	}
	if got[0].Exchange != "binance" || got[0].Market != "ETHBTC" {
		t.Errorf("got %+v, want binance/ETHBTC", got[0])
	}
}

func TestBuildWalletsSkipsZeroBalances(t *testing.T) {
	p := newFakeProvider()
	p.wallets.Set("binance", "ETH", types.WalletEntry{Available: decimal.RequireFromString("1"), Total: decimal.RequireFromString("1")})
	// kraken/BTC left at zero value, should be skipped

	got := BuildWallets(p)
	if len(got) != 1 {
		t.Fatalf("got %d wallets, want 1 (zero balances skipped)", len(got))
	}
	if got[0].Exchange != "binance" || got[0].Currency != "ETH" {
		t.Errorf("got %+v, want binance/ETH", got[0])
	}
}

func TestBuildOpportunitiesAndTradesReadThroughHistory(t *testing.T) {
	p := newFakeProvider()
	p.history.RecordOpportunity(types.Opportunity{RouteType: "direct"})
	p.history.RecordLeg("order-1", types.OrderLeg{Exchange: "binance"})

	opps := BuildOpportunities(p)
	if len(opps) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(opps))
	}
	trades := BuildTrades(p)
	if len(trades) != 1 || trades[0].OrderID != "order-1" {
		t.Fatalf("got %+v, want one trade with OrderID order-1", trades)
	}
}
