// Package types defines shared data structures used across all packages.
//
// This is the common vocabulary for the engine — currencies, markets, order
// books, wallets, routes, and the descriptors handed from the scanner to the
// execution workers. It has no dependency on internal packages so it can be
// imported from any layer. All monetary quantities use decimal.Decimal —
// binary floating-point is never used for price or volume arithmetic.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// CurrencyRole classifies a selected currency by how it appears across markets.
type CurrencyRole int

const (
	BaseOnly CurrencyRole = iota
	BaseAndTrade
	TradeOnly
)

func (r CurrencyRole) String() string {
	switch r {
	case BaseOnly:
		return "BASE_ONLY"
	case BaseAndTrade:
		return "BASE_AND_TRADE"
	case TradeOnly:
		return "TRADE_ONLY"
	default:
		return "UNKNOWN"
	}
}

// Market identifies a trading pair. The identifier is the concatenation
// TRADE||BASE with no separator, per spec.
type Market struct {
	Trade string
	Base  string
}

// ID returns the TRADE||BASE identifier.
func (m Market) ID() string {
	return m.Trade + m.Base
}

func (m Market) String() string { return m.ID() }

// MarketInfo holds per-venue, per-market fee and precision metadata.
type MarketInfo struct {
	TradeFee         decimal.Decimal // e.g. 0.001
	RatePrecision    int32           // decimal places for rate
	VolumePrecision  int32           // decimal places for volume
	MinTradeVolume   decimal.Decimal
	MinOrderValueBTC decimal.Decimal
	MinOrderValueETH decimal.Decimal
}

// PriceLevel is a single [price, qty] pair in an order book.
type PriceLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// OrderBookEntry is the unified top-of-book mirror for one {exchange, market}.
// Bids are sorted descending by price, asks ascending; index 0 is best price.
type OrderBookEntry struct {
	Bids       []PriceLevel
	Asks       []PriceLevel
	LastUpdate time.Time
}

// BestBid returns the top bid, ok=false if the book is empty on that side.
func (e OrderBookEntry) BestBid() (decimal.Decimal, bool) {
	if len(e.Bids) == 0 {
		return decimal.Zero, false
	}
	return e.Bids[0].Price, true
}

// BestAsk returns the top ask, ok=false if the book is empty on that side.
func (e OrderBookEntry) BestAsk() (decimal.Decimal, bool) {
	if len(e.Asks) == 0 {
		return decimal.Zero, false
	}
	return e.Asks[0].Price, true
}

// WalletEntry is a single currency balance on one venue.
// Invariant: Available + Reserved == Total.
type WalletEntry struct {
	Available decimal.Decimal
	Reserved  decimal.Decimal
	Total     decimal.Decimal
}

// RouteKind tags the Route union.
type RouteKind int

const (
	RouteDirect RouteKind = iota
	RouteMultiLeg
	RouteCross
)

// Route is a tagged union of the three route families. Exactly one of the
// per-kind fields is populated, selected by Kind.
type Route struct {
	Kind RouteKind

	// RouteDirect
	Market Market

	// RouteMultiLeg
	BuyMarket  Market // trade||buy_base
	SellMarket Market // trade||sell_base
	CrossPair  Market // sell_base||buy_base
	Trade      string
	BuyBase    string
	SellBase   string

	// RouteCross
	TradeX   string
	TradeY   string
	Base     string
	MarketX  Market // trade_x||base
	MarketY  Market // trade_y||base
}

// Label returns a deterministic, human-readable identifier for the route,
// used as the key into the live-comparison map and in logs.
func (r Route) Label() string {
	switch r.Kind {
	case RouteDirect:
		return "direct:" + r.Market.ID()
	case RouteMultiLeg:
		return "multi:" + r.Trade + ":" + r.BuyBase + ">" + r.SellBase
	case RouteCross:
		return "cross:" + r.TradeX + "/" + r.TradeY + ":" + r.Base
	default:
		return "unknown"
	}
}

// Legs returns the number of order legs this route requires (2, 3, or 4).
func (r Route) Legs() int {
	switch r.Kind {
	case RouteDirect:
		return 2
	case RouteMultiLeg:
		return 3
	case RouteCross:
		return 4
	default:
		return 0
	}
}

// TradeDescriptor is handed from the scanner to an execution worker for one
// order leg, plus an optional follow-up leg for multi-leg/cross routes.
type TradeDescriptor struct {
	Side         Side
	Exchange     string
	Market       Market
	Rate         decimal.Decimal
	Volume       decimal.Decimal
	MinOrderValue decimal.Decimal

	FollowUp *FollowUpLeg
}

// FollowUpLeg describes the conditional second order a worker must place
// after its primary leg completes, for multi-leg and cross routes.
type FollowUpLeg struct {
	Side     Side
	Exchange string
	Market   Market
	Rate     decimal.Decimal
}

// OrderLeg is one filled (or partially filled) sub-order, appended to the
// ledger as it executes.
type OrderLeg struct {
	Exchange string
	Market   Market
	Side     Side
	Rate     decimal.Decimal
	Volume   decimal.Decimal
	OrigID   string
	Ts       time.Time
}

// Opportunity is the append-only record of a detected (and possibly
// executed) arbitrage, persisted by the opportunity sink.
type Opportunity struct {
	Ts          time.Time
	RouteType   string
	RouteLabel  string
	BuyExchange string
	SellExchange string
	SpreadPct   decimal.Decimal
	BuyRate     decimal.Decimal
	SellRate    decimal.Decimal
	CrossRate   *decimal.Decimal
	QtyA        decimal.Decimal
	QtyB        decimal.Decimal
	Executed    bool
	DryRun      bool
}

// OrderStatus is the normalized reply from an exchange's getOrderData call.
type OrderStatus struct {
	Quantity          decimal.Decimal
	Price             decimal.Decimal
	QuantityRemaining decimal.Decimal
	Open              bool
}
