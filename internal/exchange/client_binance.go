package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

// BinanceClient implements Adapter for a Binance-like venue: HMAC-SHA256
// query signing, timestamp + trailing signature on every private call.
type BinanceClient struct {
	http      *resty.Client
	apiKey    string
	apiSecret string
	bucket    *TokenBucket
	dryRun    bool
	logger    *slog.Logger
}

// NewBinanceClient creates a REST client against a Binance-like venue.
func NewBinanceClient(baseURL, apiKey, apiSecret string, dryRun bool, logger *slog.Logger) *BinanceClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "arby/go")

	return &BinanceClient{
		http:      httpClient,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		bucket:    NewTokenBucket(20, 10),
		dryRun:    dryRun,
		logger:    logger,
	}
}

func (c *BinanceClient) Name() string { return "binance" }

// signedQuery appends a timestamp and trailing signature to a URL-encoded
// query string, per the venue's HMAC-SHA256 scheme.
func (c *BinanceClient) signedQuery(query string) string {
	query += "timestamp=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig := signBinanceQuery(c.apiSecret, query)
	return query + "&signature=" + sig
}

type binanceBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type binanceAccount struct {
	Balances []binanceBalance `json:"balances"`
}

func (c *BinanceClient) GetBalances(ctx context.Context) (map[string]types.WalletEntry, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	query := c.signedQuery("")

	var account binanceAccount
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetResult(&account).
		Get("/api/v3/account?" + query)
	if err != nil {
		return nil, fmt.Errorf("binance get balances: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("binance get balances: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make(map[string]types.WalletEntry, len(account.Balances))
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			continue
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			continue
		}
		out[b.Asset] = types.WalletEntry{
			Available: free,
			Reserved:  locked,
			Total:     free.Add(locked),
		}
	}
	return out, nil
}

type binanceFilter struct {
	FilterType  string `json:"filterType"`
	MinNotional string `json:"minNotional"`
	TickSize    string `json:"tickSize"`
	StepSize    string `json:"stepSize"`
	MinQty      string `json:"minQty"`
}

type binanceSymbol struct {
	BaseAsset  string          `json:"baseAsset"`
	QuoteAsset string          `json:"quoteAsset"`
	Filters    []binanceFilter `json:"filters"`
}

type binanceExchangeInfo struct {
	Symbols []binanceSymbol `json:"symbols"`
}

func (c *BinanceClient) DiscoverPairs(ctx context.Context, candidates []types.Market) (map[string]types.MarketInfo, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return nil, err
	}

	var info binanceExchangeInfo
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&info).
		Get("/api/v3/exchangeInfo")
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("binance exchange info: status %d: %s", resp.StatusCode(), resp.String())
	}

	bySymbol := make(map[string]binanceSymbol, len(info.Symbols))
	for _, s := range info.Symbols {
		bySymbol[s.BaseAsset+s.QuoteAsset] = s
	}

	out := make(map[string]types.MarketInfo)
	for _, m := range candidates {
		sym, ok := bySymbol[m.Trade+m.Base]
		if !ok {
			continue
		}
		out[m.ID()] = types.MarketInfo{
			TradeFee:         decimal.NewFromFloat(0.001),
			RatePrecision:    binancePriceFilterDecimals(sym.Filters),
			VolumePrecision:  binanceLotStepDecimals(sym.Filters),
			MinTradeVolume:   binanceMinQty(sym.Filters),
			MinOrderValueBTC: binanceMinNotional(sym.Filters, m.Base == "ETH"),
			MinOrderValueETH: binanceMinNotional(sym.Filters, m.Base == "BTC"),
		}
	}
	return out, nil
}

func binanceFilterByType(filters []binanceFilter, filterType string) *binanceFilter {
	for i := range filters {
		if filters[i].FilterType == filterType {
			return &filters[i]
		}
	}
	return nil
}

// binanceMinNotional returns the minimum notional filter's value, or zero if
// skip is true (meaning this minimum doesn't apply to the market's base
// currency) or the filter is absent.
func binanceMinNotional(filters []binanceFilter, skip bool) decimal.Decimal {
	if skip {
		return decimal.Zero
	}
	f := binanceFilterByType(filters, "MIN_NOTIONAL")
	if f == nil {
		f = binanceFilterByType(filters, "NOTIONAL")
	}
	if f == nil || f.MinNotional == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(f.MinNotional)
	if err != nil {
		return decimal.Zero
	}
	return v
}

func binancePriceFilterDecimals(filters []binanceFilter) int32 {
	f := binanceFilterByType(filters, "PRICE_FILTER")
	if f == nil {
		return 8
	}
	return tickDecimals(f.TickSize, 8)
}

func binanceLotStepDecimals(filters []binanceFilter) int32 {
	f := binanceFilterByType(filters, "LOT_SIZE")
	if f == nil {
		return 8
	}
	return tickDecimals(f.StepSize, 8)
}

func binanceMinQty(filters []binanceFilter) decimal.Decimal {
	f := binanceFilterByType(filters, "LOT_SIZE")
	if f == nil {
		return decimal.NewFromFloat(0.001)
	}
	v, err := decimal.NewFromString(f.MinQty)
	if err != nil {
		return decimal.NewFromFloat(0.001)
	}
	return v
}

// tickDecimals derives the decimal precision implied by a tick/step size
// string like "0.00010000": the count of digits up to (and including) the
// first "1" after the decimal point. A tick starting with "1" (whole-unit
// steps) implies zero decimals.
func tickDecimals(tick string, fallback int32) int32 {
	if tick == "" {
		return fallback
	}
	if strings.HasPrefix(tick, "1") {
		return 0
	}
	parts := strings.SplitN(tick, ".", 2)
	if len(parts) != 2 {
		return fallback
	}
	idx := strings.Index(parts[1], "1")
	if idx < 0 {
		return fallback
	}
	return int32(idx + 1)
}

type binanceOrderResponse struct {
	ClientOrderID string `json:"clientOrderId"`
}

func (c *BinanceClient) PlaceOrder(ctx context.Context, market types.Market, side types.Side, rate, volume decimal.Decimal) (string, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place order", "market", market.ID(), "side", side, "rate", rate, "volume", volume)
		return "dry-run-" + market.ID(), nil
	}
	if err := c.bucket.Wait(ctx); err != nil {
		return "", err
	}

	query := fmt.Sprintf("symbol=%s&side=%s&timeInForce=GTC&type=LIMIT&quantity=%s&price=%s&",
		market.Trade+market.Base, side, volume.String(), rate.String())
	query = c.signedQuery(query)

	var result binanceOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetResult(&result).
		Post("/api/v3/order?" + query)
	if err != nil {
		return "", fmt.Errorf("binance place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("binance place order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.ClientOrderID, nil
}

func (c *BinanceClient) CancelOrder(ctx context.Context, market types.Market, orderID string) error {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel order", "market", market.ID(), "order_id", orderID)
		return nil
	}
	if err := c.bucket.Wait(ctx); err != nil {
		return err
	}

	query := fmt.Sprintf("origClientOrderId=%s&symbol=%s&", orderID, market.Trade+market.Base)
	query = c.signedQuery(query)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		Delete("/api/v3/order?" + query)
	if err != nil {
		return fmt.Errorf("binance cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("binance cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

type binanceOrderStatus struct {
	ClientOrderID string `json:"clientOrderId"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Price         string `json:"price"`
	Status        string `json:"status"`
}

func (c *BinanceClient) GetOrderStatus(ctx context.Context, market types.Market, orderID string) (types.OrderStatus, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return types.OrderStatus{}, err
	}

	query := fmt.Sprintf("symbol=%s&origClientOrderId=%s&", market.Trade+market.Base, orderID)
	query = c.signedQuery(query)

	var result binanceOrderStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetResult(&result).
		Get("/api/v3/order?" + query)
	if err != nil {
		return types.OrderStatus{}, fmt.Errorf("binance get order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.OrderStatus{}, fmt.Errorf("binance get order: status %d: %s", resp.StatusCode(), resp.String())
	}

	qty, _ := decimal.NewFromString(result.OrigQty)
	executed, _ := decimal.NewFromString(result.ExecutedQty)
	price, _ := decimal.NewFromString(result.Price)

	return types.OrderStatus{
		Quantity:          qty,
		Price:             price,
		QuantityRemaining: qty.Sub(executed),
		Open:              result.Status == "NEW" || result.Status == "PARTIALLY_FILLED",
	}, nil
}
