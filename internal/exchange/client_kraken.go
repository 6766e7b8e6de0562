package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

// KrakenClient implements Adapter for a Kraken-like venue: HMAC-SHA512
// request signing over uri_path||SHA256(nonce||postdata), asset-name
// aliasing (XBT for BTC, X/Z class prefixes), and a mandatory ≥1s spacing
// between private calls enforced via NonceSerializer.
type KrakenClient struct {
	http      *resty.Client
	apiKey    string
	apiSecret string
	nonces    *NonceSerializer
	dryRun    bool
	logger    *slog.Logger

	mu      sync.RWMutex
	pairMap map[string]string // internal market id -> kraken pair name
}

// NewKrakenClient creates a REST client against a Kraken-like venue.
func NewKrakenClient(baseURL, apiKey, apiSecret string, dryRun bool, logger *slog.Logger) *KrakenClient {
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
		})

	return &KrakenClient{
		http:      httpClient,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		nonces:    NewNonceSerializer(time.Second),
		dryRun:    dryRun,
		logger:    logger,
		pairMap:   make(map[string]string),
	}
}

func (c *KrakenClient) Name() string { return "kraken" }

func (c *KrakenClient) privateRequest(ctx context.Context, endpoint string, data url.Values) (map[string]any, error) {
	if c.dryRun && (endpoint == "AddOrder" || endpoint == "CancelOrder") {
		c.logger.Info("DRY-RUN: would call kraken private endpoint", "endpoint", endpoint)
		return map[string]any{"txid": []any{"dry-run-" + endpoint}, "count": float64(1)}, nil
	}

	nonce, err := c.nonces.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = url.Values{}
	}
	nonceStr := strconv.FormatInt(nonce, 10)
	data.Set("nonce", nonceStr)

	uriPath := "/0/private/" + endpoint
	postData := data.Encode()
	sig, err := signKrakenRequest(c.apiSecret, uriPath, nonceStr, postData)
	if err != nil {
		return nil, fmt.Errorf("kraken sign: %w", err)
	}

	var envelope struct {
		Error  []string       `json:"error"`
		Result map[string]any `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("API-Key", c.apiKey).
		SetHeader("API-Sign", sig).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(postData).
		SetResult(&envelope).
		Post(uriPath)
	if err != nil {
		return nil, fmt.Errorf("kraken %s: %w", endpoint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("kraken %s: status %d: %s", endpoint, resp.StatusCode(), resp.String())
	}
	if len(envelope.Error) > 0 {
		return nil, fmt.Errorf("kraken %s: %s", endpoint, strings.Join(envelope.Error, "; "))
	}
	return envelope.Result, nil
}

func (c *KrakenClient) publicRequest(ctx context.Context, endpoint string, result any) error {
	uriPath := "/0/public/" + endpoint
	var envelope struct {
		Error  []string `json:"error"`
		Result any      `json:"result"`
	}
	envelope.Result = result

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&envelope).
		Get(uriPath)
	if err != nil {
		return fmt.Errorf("kraken %s: %w", endpoint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("kraken %s: status %d: %s", endpoint, resp.StatusCode(), resp.String())
	}
	if len(envelope.Error) > 0 {
		return fmt.Errorf("kraken %s: %s", endpoint, strings.Join(envelope.Error, "; "))
	}
	return nil
}

func (c *KrakenClient) GetBalances(ctx context.Context) (map[string]types.WalletEntry, error) {
	result, err := c.privateRequest(ctx, "Balance", nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.WalletEntry, len(result))
	for asset, raw := range result {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		bal, err := decimal.NewFromString(str)
		if err != nil {
			continue
		}
		currency := fromKrakenAsset(asset)
		out[currency] = types.WalletEntry{Available: bal, Reserved: decimal.Zero, Total: bal}
	}
	return out, nil
}

type krakenPairInfo struct {
	Base         string `json:"base"`
	Quote        string `json:"quote"`
	PairDecimals int32  `json:"pair_decimals"`
	LotDecimals  int32  `json:"lot_decimals"`
	OrderMin     string `json:"ordermin"`
}

func (c *KrakenClient) DiscoverPairs(ctx context.Context, candidates []types.Market) (map[string]types.MarketInfo, error) {
	var pairs map[string]krakenPairInfo
	if err := c.publicRequest(ctx, "AssetPairs", &pairs); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]types.MarketInfo)
	for _, m := range candidates {
		for pairName, info := range pairs {
			if strings.HasSuffix(pairName, ".d") {
				continue // dark-pool pair, not tradable via the normal book
			}
			if fromKrakenAsset(info.Base) != m.Trade || fromKrakenAsset(info.Quote) != m.Base {
				continue
			}
			c.pairMap[m.ID()] = pairName

			orderMin := decimal.NewFromFloat(0.0001)
			if info.OrderMin != "" {
				if v, err := decimal.NewFromString(info.OrderMin); err == nil {
					orderMin = v
				}
			}
			minBTC, minETH := decimal.Zero, decimal.Zero
			switch m.Base {
			case "BTC":
				minBTC = orderMin
			case "ETH":
				minETH = orderMin
			}
			out[m.ID()] = types.MarketInfo{
				TradeFee:         decimal.NewFromFloat(0.0026),
				RatePrecision:    info.PairDecimals,
				VolumePrecision:  info.LotDecimals,
				MinTradeVolume:   orderMin,
				MinOrderValueBTC: minBTC,
				MinOrderValueETH: minETH,
			}
			break
		}
	}
	return out, nil
}

func (c *KrakenClient) krakenPair(m types.Market) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pairMap[m.ID()]
	return p, ok
}

func (c *KrakenClient) PlaceOrder(ctx context.Context, market types.Market, side types.Side, rate, volume decimal.Decimal) (string, error) {
	pair, ok := c.krakenPair(market)
	if !ok {
		return "", fmt.Errorf("kraken: unknown pair for market %s", market.ID())
	}

	data := url.Values{}
	data.Set("pair", pair)
	data.Set("type", strings.ToLower(string(side)))
	data.Set("ordertype", "limit")
	data.Set("price", rate.String())
	data.Set("volume", volume.String())

	result, err := c.privateRequest(ctx, "AddOrder", data)
	if err != nil {
		return "", err
	}
	txids, _ := result["txid"].([]any)
	if len(txids) == 0 {
		return "", fmt.Errorf("kraken: AddOrder returned no txid")
	}
	txid, _ := txids[0].(string)
	return txid, nil
}

func (c *KrakenClient) CancelOrder(ctx context.Context, market types.Market, orderID string) error {
	data := url.Values{}
	data.Set("txid", orderID)
	result, err := c.privateRequest(ctx, "CancelOrder", data)
	if err != nil {
		return err
	}
	count, _ := result["count"].(float64)
	if count <= 0 {
		return fmt.Errorf("kraken: cancel order %s reported count 0", orderID)
	}
	return nil
}

func (c *KrakenClient) GetOrderStatus(ctx context.Context, market types.Market, orderID string) (types.OrderStatus, error) {
	data := url.Values{}
	data.Set("txid", orderID)
	result, err := c.privateRequest(ctx, "QueryOrders", data)
	if err != nil {
		return types.OrderStatus{}, err
	}
	raw, ok := result[orderID].(map[string]any)
	if !ok {
		return types.OrderStatus{}, fmt.Errorf("kraken: order %s not found", orderID)
	}

	vol, _ := decimal.NewFromString(fmt.Sprint(raw["vol"]))
	volExec, _ := decimal.NewFromString(fmt.Sprint(raw["vol_exec"]))
	price, _ := decimal.NewFromString(fmt.Sprint(raw["price"]))
	status, _ := raw["status"].(string)

	return types.OrderStatus{
		Quantity:          vol,
		Price:             price,
		QuantityRemaining: vol.Sub(volExec),
		Open:              status == "open" || status == "pending",
	}, nil
}
