// Package engine wires every subsystem together: venue adapters, the order
// book and wallet mirrors, market-info discovery, the route builder, the
// scanner's tick loop, the execution coordinator, the persistence sink, and
// the optional read-only dashboard.
//
// Lifecycle: New() → Start() → [runs until cancelled] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"arby/internal/api"
	"arby/internal/book"
	"arby/internal/config"
	"arby/internal/coordinator"
	"arby/internal/exchange"
	"arby/internal/marketinfo"
	"arby/internal/persistence"
	"arby/internal/route"
	"arby/internal/scanner"
	"arby/internal/wallet"
	"arby/pkg/types"
)

// Engine owns the lifecycle of every background goroutine: WS feeds, the
// scanner tick loop, and the optional dashboard server.
type Engine struct {
	cfg config.Config

	adapters map[string]exchange.Adapter
	venues   []string

	books      *book.Store
	wallets    *wallet.Store
	marketInfo *marketinfo.Cache
	routes     *route.Builder
	sink       *persistence.RecentSink
	refresher  *wallet.Refresher
	exec       *coordinator.Coordinator
	scan       *scanner.Scanner
	dashboard  *api.Server

	feeds []*exchange.WSFeed

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs every adapter from cfg.Venues, runs pair discovery against
// each, derives currency roles from the discovered intersection, and builds
// the route set. Discovery failure on any venue is fatal: the caller should
// treat a non-nil error as unrecoverable, per the boot-sequence contract.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Engine, error) {
	adapters := make(map[string]exchange.Adapter, len(cfg.Venues))
	venues := make([]string, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		adapter, err := newAdapter(v, cfg.DryRun, logger)
		if err != nil {
			return nil, fmt.Errorf("construct adapter %s: %w", v.Name, err)
		}
		adapters[v.Name] = adapter
		venues = append(venues, v.Name)
	}

	candidates := candidateMarkets(cfg.Routes.Currencies)

	discoveredByVenue := make([]map[string]types.MarketInfo, 0, len(venues))
	marketInfo := marketinfo.NewCache()
	for _, v := range venues {
		discovered, err := adapters[v].DiscoverPairs(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("discover pairs on %s: %w", v, err)
		}
		for id, info := range discovered {
			marketInfo.Set(v, id, info)
		}
		discoveredByVenue = append(discoveredByVenue, discovered)
	}

	roles := route.DeriveRoles(cfg.Routes.Currencies, discoveredByVenue)
	active := route.BuildActivePairs(discoveredByVenue)

	builder := route.NewBuilder()
	builder.Rebuild(roles, active, cfg.Routes.CurrencyBases)

	books := book.NewStore(cfg.Scanner.TopN)
	wallets := wallet.NewStore()

	fetchers := make([]wallet.BalanceFetcher, 0, len(adapters))
	for _, v := range venues {
		fetchers = append(fetchers, adapters[v])
	}
	refresher := wallet.NewRefresher(wallets, fetchers, cfg.Execution.WalletRefreshDelay, cfg.Execution.WalletRefreshRetries, logger)

	sink, err := persistence.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open persistence sink: %w", err)
	}
	recent := persistence.NewRecentSink(sink, 200)

	exec := coordinator.New(adapters, marketInfo, logger)

	scan := scanner.New(scanner.Config{
		Books:           books,
		Wallets:         wallets,
		MarketInfo:      marketInfo,
		Routes:          builder,
		Venues:          venues,
		Sink:            recent,
		Exec:            exec,
		Refresher:       refresher,
		MinProfit:       cfg.Scanner.MinProfit,
		MaxAge:          cfg.Scanner.MaxBookAge,
		DryRun:          cfg.DryRun,
		DirectTimeout:   cfg.Execution.DirectTimeout,
		FollowUpTimeout: cfg.Execution.FollowUpTimeout,
		Logger:          logger.With("component", "scanner"),
	})

	feeds := make([]*exchange.WSFeed, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		feeds = append(feeds, newFeed(v, books, logger))
	}

	runCtx, cancel := context.WithCancel(ctx)

	e := &Engine{
		cfg:        cfg,
		adapters:   adapters,
		venues:     venues,
		books:      books,
		wallets:    wallets,
		marketInfo: marketInfo,
		routes:     builder,
		sink:       recent,
		refresher:  refresher,
		exec:       exec,
		scan:       scan,
		feeds:      feeds,
		logger:     logger.With("component", "engine"),
		ctx:        runCtx,
		cancel:     cancel,
	}

	if cfg.Dashboard.Enabled {
		e.dashboard = api.NewServer(cfg.Dashboard, e, logger)
	}

	return e, nil
}

// Start launches the WS feeds, an initial balance pull, the scanner tick
// loop, and the dashboard (if enabled). It returns immediately; call Stop to
// shut down, or wait on ctx passed to New.
func (e *Engine) Start() error {
	e.refresher.RefreshAll(e.ctx)

	for _, f := range e.feeds {
		f := f
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := f.Run(e.ctx); err != nil && e.ctx.Err() == nil {
				e.logger.Error("ws feed stopped", "error", err)
			}
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.scan.Run(e.ctx, e.cfg.Scanner.TickInterval)
	}()

	if e.dashboard != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.dashboard.Start(); err != nil {
				e.logger.Error("dashboard server stopped", "error", err)
			}
		}()
	}

	return nil
}

// Stop cancels every background goroutine, closes the WS feeds and
// persistence sink, and waits for clean shutdown.
func (e *Engine) Stop() {
	e.logger.Info("shutting down")

	e.cancel()

	if e.dashboard != nil {
		if err := e.dashboard.Stop(); err != nil {
			e.logger.Error("dashboard shutdown error", "error", err)
		}
	}

	for _, f := range e.feeds {
		f.Close()
	}

	e.wg.Wait()

	if err := e.sink.Close(); err != nil {
		e.logger.Error("close persistence sink failed", "error", err)
	}

	e.logger.Info("shutdown complete")
}

func newAdapter(v config.VenueConfig, dryRun bool, logger *slog.Logger) (exchange.Adapter, error) {
	venueLogger := logger.With("venue", v.Name)
	switch v.Name {
	case "binance":
		return exchange.NewBinanceClient(v.BaseURL, v.APIKey, v.APISecret, dryRun, venueLogger), nil
	case "kraken":
		return exchange.NewKrakenClient(v.BaseURL, v.APIKey, v.APISecret, dryRun, venueLogger), nil
	default:
		return nil, fmt.Errorf("unknown venue %q", v.Name)
	}
}

func newFeed(v config.VenueConfig, books *book.Store, logger *slog.Logger) *exchange.WSFeed {
	parser := exchange.BinanceBookFrame
	if v.Name == "kraken" {
		parser = exchange.KrakenBookFrame
	}
	return exchange.NewWSFeed(v.Name, v.WSURL, parser, books, logger)
}

// candidateMarkets enumerates every (trade, base) pair over the configured
// currency set for discovery; the per-venue adapter filters down to what is
// actually listed.
func candidateMarkets(currencies []string) []types.Market {
	var out []types.Market
	for _, trade := range currencies {
		for _, base := range currencies {
			if trade == base {
				continue
			}
			out = append(out, types.Market{Trade: trade, Base: base})
		}
	}
	return out
}

// --- api.Provider ---

func (e *Engine) Stats() *scanner.Stats           { return e.scan.Stats() }
func (e *Engine) Books() *book.Store              { return e.books }
func (e *Engine) Wallets() *wallet.Store          { return e.wallets }
func (e *Engine) History() *persistence.RecentSink { return e.sink }
func (e *Engine) Venues() []string                { return e.venues }
func (e *Engine) Currencies() []string            { return e.cfg.Routes.Currencies }
func (e *Engine) DryRun() bool                     { return e.cfg.DryRun }

// MarketKeys returns every {exchange, market} pair reachable from the
// current route set, for the dashboard's /orderbooks endpoint.
func (e *Engine) MarketKeys() [][2]string {
	seen := map[[2]string]bool{}
	for _, r := range e.routes.Routes() {
		for _, m := range routeMarkets(r) {
			for _, v := range e.venues {
				seen[[2]string{v, m.ID()}] = true
			}
		}
	}
	keys := make([][2]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return keys
}

func routeMarkets(r types.Route) []types.Market {
	switch r.Kind {
	case types.RouteDirect:
		return []types.Market{r.Market}
	case types.RouteMultiLeg:
		return []types.Market{r.BuyMarket, r.SellMarket, r.CrossPair}
	case types.RouteCross:
		return []types.Market{r.MarketX, r.MarketY}
	default:
		return nil
	}
}
