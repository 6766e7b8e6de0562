package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"arby/internal/book"
	"arby/internal/coordinator"
	"arby/internal/marketinfo"
	"arby/internal/persistence"
	"arby/internal/route"
	"arby/internal/wallet"
	"arby/pkg/types"
)

// Scanner runs the fixed-cadence tick loop: for every route, pick the best
// venue pair, gate on freshness, compare against the dynamic profit
// threshold, size the trade, and — outside dry-run mode — hand it to the
// execution coordinator.
type Scanner struct {
	books      *book.Store
	wallets    *wallet.Store
	marketInfo *marketinfo.Cache
	routes     *route.Builder
	venues     []string
	stats      *Stats
	sink       persistence.Sink
	exec       *coordinator.Coordinator
	refresher  *wallet.Refresher

	minProfit decimal.Decimal
	maxAge    time.Duration
	dryRun    bool

	directTimeout   time.Duration
	followUpTimeout time.Duration

	logger *slog.Logger
}

// Config bundles everything needed to construct a Scanner.
type Config struct {
	Books           *book.Store
	Wallets         *wallet.Store
	MarketInfo      *marketinfo.Cache
	Routes          *route.Builder
	Venues          []string
	Sink            persistence.Sink
	Exec            *coordinator.Coordinator
	Refresher       *wallet.Refresher
	MinProfit       decimal.Decimal
	MaxAge          time.Duration
	DryRun          bool
	DirectTimeout   time.Duration
	FollowUpTimeout time.Duration
	Logger          *slog.Logger
}

// New creates a Scanner from cfg.
func New(cfg Config) *Scanner {
	return &Scanner{
		books:           cfg.Books,
		wallets:         cfg.Wallets,
		marketInfo:      cfg.MarketInfo,
		routes:          cfg.Routes,
		venues:          cfg.Venues,
		stats:           NewStats(),
		sink:            cfg.Sink,
		exec:            cfg.Exec,
		refresher:       cfg.Refresher,
		minProfit:       cfg.MinProfit,
		maxAge:          cfg.MaxAge,
		dryRun:          cfg.DryRun,
		directTimeout:   cfg.DirectTimeout,
		followUpTimeout: cfg.FollowUpTimeout,
		logger:          cfg.Logger,
	}
}

// Stats exposes the route-score tracker for the read-only dashboard.
func (s *Scanner) Stats() *Stats { return s.stats }

// Run ticks every interval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	for _, r := range s.routes.Routes() {
		switch r.Kind {
		case types.RouteDirect:
			s.evaluateDirect(ctx, r)
		case types.RouteMultiLeg:
			s.evaluateMultiLeg(ctx, r)
		case types.RouteCross:
			s.evaluateCross(ctx, r)
		}
	}
}

func (s *Scanner) isFresh(exchangeName, marketID string) (types.OrderBookEntry, bool) {
	entry, ok := s.books.Get(exchangeName, marketID)
	if !ok {
		return entry, false
	}
	if time.Since(entry.LastUpdate) > s.maxAge {
		return entry, false
	}
	return entry, true
}

// --- Direct route ---

type directCandidate struct {
	a, b     string
	score    decimal.Decimal
	bidA     decimal.Decimal
	askB     decimal.Decimal
	bookA    types.OrderBookEntry
	bookB    types.OrderBookEntry
}

func (s *Scanner) evaluateDirect(ctx context.Context, r types.Route) {
	market := r.Market
	var best *directCandidate

	for _, a := range s.venues {
		for _, b := range s.venues {
			if a == b {
				continue
			}
			bookA, freshA := s.isFresh(a, market.ID())
			bookB, freshB := s.isFresh(b, market.ID())
			if !freshA || !freshB {
				continue
			}
			bidA, okA := bookA.BestBid()
			askB, okB := bookB.BestAsk()
			if !okA || !okB || askB.IsZero() {
				continue
			}
			score := bidA.Div(askB).Sub(one)
			if best == nil || score.GreaterThan(best.score) {
				best = &directCandidate{a: a, b: b, score: score, bidA: bidA, askB: askB, bookA: bookA, bookB: bookB}
			}
		}
	}

	label := r.Label()
	if best == nil {
		s.stats.Record(RouteSnapshot{Label: label})
		return
	}
	s.stats.Record(RouteSnapshot{Label: label, Score: best.score, BuyExchange: best.a, SellExchange: best.b, BuyRate: best.bidA, SellRate: best.askB})

	infoA, okA := s.marketInfo.Get(best.a, market.ID())
	infoB, okB := s.marketInfo.Get(best.b, market.ID())
	if !okA || !okB {
		return
	}

	thresh := threshold(s.minProfit, []decimal.Decimal{infoA.TradeFee, infoB.TradeFee})
	if best.score.LessThan(thresh) {
		return
	}

	newA, newB, r2 := directRates(best.bidA, best.askB, infoA.TradeFee, infoB.TradeFee, infoA.RatePrecision, infoB.RatePrecision)

	ethBtcBidA, haveEthBtcA := s.ethBtcBid(best.a)
	ethBtcBidB, haveEthBtcB := s.ethBtcBid(best.b)
	minValA := marketinfo.MinOrderValue(market.Base, infoA, ethBtcBidA, haveEthBtcA)
	minValB := marketinfo.MinOrderValue(market.Base, infoB, ethBtcBidB, haveEthBtcB)
	if marketinfo.IsUnresolved(minValA) || marketinfo.IsUnresolved(minValB) {
		return
	}

	walletBuy := s.wallets.Available(best.a, market.Base)
	walletSell := s.wallets.Available(best.b, market.Trade).Mul(newB)

	obvBuy := bookValueTo(toLevelViews(best.bookA.Bids), newA, true).Div(three)
	obvSell := bookValueTo(toLevelViews(best.bookB.Asks), newB, false).Div(three)

	orderSize := minDecimal(obvBuy, obvSell, walletBuy, walletSell)
	if !sizingSucceeds(orderSize, minValA, minValB) {
		return
	}

	qtyA, qtyB := sizeVolumes(orderSize, r2, newB, infoB.TradeFee, infoA.VolumePrecision, infoB.VolumePrecision)

	opp := types.Opportunity{
		Ts:           time.Now(),
		RouteType:    "direct",
		RouteLabel:   label,
		BuyExchange:  best.b,
		SellExchange: best.a,
		SpreadPct:    best.score,
		BuyRate:      newB,
		SellRate:     newA,
		QtyA:         qtyA,
		QtyB:         qtyB,
		DryRun:       s.dryRun,
	}

	if s.dryRun {
		opp.Executed = false
		s.recordOpportunity(opp)
		return
	}

	tdA := types.TradeDescriptor{Side: types.SELL, Exchange: best.a, Market: market, Rate: newA, Volume: qtyA, MinOrderValue: minValA}
	tdB := types.TradeDescriptor{Side: types.BUY, Exchange: best.b, Market: market, Rate: newB, Volume: qtyB, MinOrderValue: minValB}

	legs, ok := s.exec.Execute(ctx, tdA, tdB, s.directTimeout)
	if !ok {
		s.logger.Error("execution did not complete before timeout", "route", label)
	}
	opp.Executed = ok
	s.recordOpportunity(opp)
	s.recordLegs(label, legs)

	if s.refresher != nil {
		go s.refresher.RefreshAfterExecution(context.Background())
	}
}

// ethBtcBid returns the best bid on a venue's ETH/BTC book, used as the
// minOrderValue fallback conversion rate.
func (s *Scanner) ethBtcBid(exchangeName string) (decimal.Decimal, bool) {
	entry, ok := s.books.Get(exchangeName, "ETHBTC")
	if !ok {
		return decimal.Zero, false
	}
	return entry.BestBid()
}

func toLevelViews(levels []types.PriceLevel) []levelView {
	out := make([]levelView, len(levels))
	for i, l := range levels {
		out[i] = levelView{Price: l.Price, Qty: l.Qty}
	}
	return out
}

func (s *Scanner) recordOpportunity(o types.Opportunity) {
	if s.sink == nil {
		return
	}
	if err := s.sink.RecordOpportunity(o); err != nil {
		s.logger.Error("record opportunity failed", "error", err)
	}
}

func (s *Scanner) recordLegs(orderID string, legs []types.OrderLeg) {
	if s.sink == nil {
		return
	}
	for _, leg := range legs {
		if err := s.sink.RecordLeg(orderID, leg); err != nil {
			s.logger.Error("record leg failed", "error", err)
		}
	}
}
