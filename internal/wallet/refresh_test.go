package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

type stubFetcher struct {
	name     string
	failures int
	calls    int
	balances map[string]types.WalletEntry
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) GetBalances(ctx context.Context) (map[string]types.WalletEntry, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("temporary failure")
	}
	return f.balances, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefreshAllRetriesThenSucceeds(t *testing.T) {
	store := NewStore()
	fetcher := &stubFetcher{
		name:     "binance",
		failures: 2,
		balances: map[string]types.WalletEntry{"ETH": {Available: decimal.RequireFromString("1")}},
	}
	r := NewRefresher(store, []BalanceFetcher{fetcher}, time.Millisecond, 5, testLogger())

	r.RefreshAll(context.Background())

	if fetcher.calls != 3 {
		t.Errorf("calls = %d, want 3 (2 failures + 1 success)", fetcher.calls)
	}
	if !store.Available("binance", "ETH").Equal(decimal.RequireFromString("1")) {
		t.Error("store should hold the balances from the successful attempt")
	}
}

func TestRefreshAllGivesUpAfterRetriesExhausted(t *testing.T) {
	store := NewStore()
	fetcher := &stubFetcher{name: "kraken", failures: 10}
	r := NewRefresher(store, []BalanceFetcher{fetcher}, time.Millisecond, 3, testLogger())

	r.RefreshAll(context.Background())

	if fetcher.calls != 3 {
		t.Errorf("calls = %d, want exactly retries=3", fetcher.calls)
	}
}

func TestNewRefresherDefaultsRetries(t *testing.T) {
	r := NewRefresher(NewStore(), nil, time.Millisecond, 0, testLogger())
	if r.retries != 3 {
		t.Errorf("retries = %d, want default 3", r.retries)
	}
}
