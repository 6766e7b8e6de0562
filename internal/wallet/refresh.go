package wallet

import (
	"context"
	"log/slog"
	"time"

	"arby/pkg/types"
)

// BalanceFetcher is the narrow capability a venue adapter exposes to the
// refresher; satisfied by the exchange.Adapter implementations.
type BalanceFetcher interface {
	Name() string
	GetBalances(ctx context.Context) (map[string]types.WalletEntry, error)
}

// Refresher re-pulls balances from every venue after an execution, with
// bounded retries, and writes the results into a Store. Modeled on the
// teacher's ticker-driven, channel-fed aggregator: here the "alarm" is a
// log line emitted when a venue's balances stay stale after retries are
// exhausted, rather than a kill signal, since a stale wallet degrades
// sizing on the next tick but is not itself unsafe to keep running with.
type Refresher struct {
	store    *Store
	fetchers []BalanceFetcher
	delay    time.Duration
	retries  int
	logger   *slog.Logger
}

// NewRefresher builds a Refresher pulling balances for every given fetcher.
func NewRefresher(store *Store, fetchers []BalanceFetcher, delay time.Duration, retries int, logger *slog.Logger) *Refresher {
	if retries <= 0 {
		retries = 3
	}
	return &Refresher{
		store:    store,
		fetchers: fetchers,
		delay:    delay,
		retries:  retries,
		logger:   logger,
	}
}

// RefreshAfterExecution sleeps once for settlement, then refreshes every
// venue's balances, retrying each venue independently up to r.retries times
// spaced r.delay apart before logging and moving on.
func (r *Refresher) RefreshAfterExecution(ctx context.Context) {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return
	}
	r.RefreshAll(ctx)
}

// RefreshAll pulls balances for every registered venue right now.
func (r *Refresher) RefreshAll(ctx context.Context) {
	for _, f := range r.fetchers {
		r.refreshOne(ctx, f)
	}
}

func (r *Refresher) refreshOne(ctx context.Context, f BalanceFetcher) {
	var lastErr error
	for attempt := 0; attempt < r.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.delay):
			case <-ctx.Done():
				return
			}
		}
		balances, err := f.GetBalances(ctx)
		if err == nil {
			for currency, entry := range balances {
				r.store.Set(f.Name(), currency, entry)
			}
			return
		}
		lastErr = err
	}
	r.logger.Warn("wallet refresh exhausted retries",
		"exchange", f.Name(), "retries", r.retries, "error", lastErr)
}
