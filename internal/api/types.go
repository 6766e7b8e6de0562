// Package api exposes a narrow, read-only HTTP/WebSocket control plane over
// the running engine: route scores, order books, wallets, and trade/
// opportunity history. It never accepts an order or config change — every
// handler only reads from the snapshot provider.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusSnapshot is the top-level /status payload: one row per tracked route.
type StatusSnapshot struct {
	Ts     time.Time      `json:"ts"`
	DryRun bool           `json:"dry_run"`
	Routes []RouteStatus  `json:"routes"`
}

// RouteStatus mirrors one scanner.RouteSnapshot plus its cumulative histogram.
type RouteStatus struct {
	Label        string          `json:"label"`
	Score        decimal.Decimal `json:"score"`
	HighestSeen  decimal.Decimal `json:"highest_seen"`
	BuyExchange  string          `json:"buy_exchange,omitempty"`
	SellExchange string          `json:"sell_exchange,omitempty"`
	BuyRate      decimal.Decimal `json:"buy_rate,omitempty"`
	SellRate     decimal.Decimal `json:"sell_rate,omitempty"`
	Histogram    [4]int          `json:"histogram"` // counts above 0.4%, 0.5%, 0.75%, 1%
}

// BookSnapshot is one {exchange, market} top-of-book mirror for /orderbooks.
type BookSnapshot struct {
	Exchange   string          `json:"exchange"`
	Market     string          `json:"market"`
	BestBid    decimal.Decimal `json:"best_bid"`
	BestAsk    decimal.Decimal `json:"best_ask"`
	LastUpdate time.Time       `json:"last_update"`
	StaleMs    int64           `json:"stale_ms"`
}

// WalletSnapshot is one {exchange, currency} balance row for /wallets.
type WalletSnapshot struct {
	Exchange  string          `json:"exchange"`
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Reserved  decimal.Decimal `json:"reserved"`
	Total     decimal.Decimal `json:"total"`
}

// DashboardEvent wraps every message pushed over /live.
type DashboardEvent struct {
	Type      string      `json:"type"` // "status"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}
