package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

// Adapter is the capability every venue implementation exposes to the
// engine: balances, discovery, and order lifecycle. Each venue's wire
// format (HMAC scheme, asset-name aliasing, endpoint shapes) is hidden
// behind this narrow interface.
type Adapter interface {
	Name() string

	// GetBalances returns available/reserved/total for every currency the
	// venue reports on the account.
	GetBalances(ctx context.Context) (map[string]types.WalletEntry, error)

	// DiscoverPairs returns the set of markets from candidates that are
	// actually listed and tradable on this venue, along with their
	// MarketInfo (fee, precisions, minima).
	DiscoverPairs(ctx context.Context, candidates []types.Market) (map[string]types.MarketInfo, error)

	// PlaceOrder submits a limit order and returns the venue's order id.
	PlaceOrder(ctx context.Context, market types.Market, side types.Side, rate, volume decimal.Decimal) (string, error)

	// CancelOrder cancels a previously placed order.
	CancelOrder(ctx context.Context, market types.Market, orderID string) error

	// GetOrderStatus queries the current state of a previously placed order.
	GetOrderStatus(ctx context.Context, market types.Market, orderID string) (types.OrderStatus, error)
}
