// Package marketinfo holds per-venue, per-market fee and precision metadata
// discovered once at boot, consulted on every
// scanner tick for rate/volume quantization and minimum-order-value gating.
package marketinfo

import (
	"sync"

	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

type key struct {
	exchange string
	market   string
}

// Cache is the thread-safe {exchange,market}→MarketInfo mirror.
type Cache struct {
	mu   sync.RWMutex
	data map[key]types.MarketInfo
}

// NewCache creates an empty market-info cache.
func NewCache() *Cache {
	return &Cache{data: make(map[key]types.MarketInfo)}
}

// Set stores the metadata discovered for (exchange, market).
func (c *Cache) Set(exchange, market string, info types.MarketInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key{exchange, market}] = info
}

// Get returns the metadata for (exchange, market), ok=false if undiscovered.
func (c *Cache) Get(exchange, market string) (types.MarketInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.data[key{exchange, market}]
	return info, ok
}

// Len reports how many (exchange, market) pairs have metadata.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// unresolved is the +Inf sentinel returned when minOrderValue cannot be
// resolved for a base currency; any real order value compares less than it.
var unresolved = decimal.New(1, 18)

// MinOrderValue resolves the minimum order value for a leg trading against
// base: minOrderValueBTC if base is BTC, minOrderValueETH if base is ETH,
// else the ETH/BTC book's best bid on the same venue divided into
// minOrderValueETH (a BTC-denominated minimum derived from the ETH minimum).
// If neither direct minimum is set and the ETH/BTC book is empty, returns
// the +Inf sentinel, disqualifying the route rather than guessing.
func MinOrderValue(base string, info types.MarketInfo, ethBtcBestBid decimal.Decimal, haveEthBtcBid bool) decimal.Decimal {
	switch base {
	case "BTC":
		if info.MinOrderValueBTC.IsPositive() {
			return info.MinOrderValueBTC
		}
		return unresolved
	case "ETH":
		if info.MinOrderValueETH.IsPositive() {
			return info.MinOrderValueETH
		}
	}
	if haveEthBtcBid && ethBtcBestBid.IsPositive() && info.MinOrderValueETH.IsPositive() {
		return info.MinOrderValueETH.Mul(ethBtcBestBid)
	}
	return unresolved
}

// IsUnresolved reports whether MinOrderValue returned its "disqualified" sentinel.
func IsUnresolved(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(unresolved)
}
