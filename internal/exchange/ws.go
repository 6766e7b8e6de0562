package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"arby/internal/book"
	"arby/pkg/types"
)

const (
	wsPingInterval     = 30 * time.Second
	wsReadTimeout      = 90 * time.Second
	wsWriteTimeout     = 10 * time.Second
	wsMinReconnectWait = time.Second
	// wsMaxReconnectWait caps exponential backoff at 60s — doubled from the
	// teacher's 30s cap since a single venue's book feed going dark for a
	// minute is tolerable given the 5s freshness gate already disqualifies
	// anything built on it.
	wsMaxReconnectWait = 60 * time.Second
	// wsSessionReset forces a periodic reconnect even on a healthy
	// connection, mirroring the source's scheduled WS session reset.
	wsSessionReset = 30 * time.Hour
)

// FrameParser turns one raw WS text frame into book updates for a single
// venue's wire format. ok is false for frames that don't carry a book
// update (heartbeats, acks, unrelated event types).
type FrameParser func(data []byte) (market string, snapshot bool, bids, asks []types.PriceLevel, ok bool)

// WSFeed maintains one exchange's order-book WebSocket connection: dial,
// ping, read-deadline, exponential-backoff reconnect, and a scheduled
// session reset, dispatching parsed updates into a book.Store.
type WSFeed struct {
	exchange string
	url      string
	parse    FrameParser
	store    *book.Store
	logger   *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewWSFeed creates a feed for one venue. parse is the venue-specific frame
// decoder (see BinanceBookFrame / KrakenBookFrame).
func NewWSFeed(exchange, url string, parse FrameParser, store *book.Store, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		exchange: exchange,
		url:      url,
		parse:    parse,
		store:    store,
		logger:   logger.With("component", "ws", "exchange", exchange),
	}
}

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *WSFeed) Run(ctx context.Context) error {
	backoff := wsMinReconnectWait

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > wsMaxReconnectWait {
			backoff = wsMaxReconnectWait
		}
	}
}

// Close closes the underlying connection, if any.
func (f *WSFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *WSFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	f.logger.Info("websocket connected")

	sessionCtx, sessionCancel := context.WithTimeout(ctx, wsSessionReset)
	defer sessionCancel()

	pingCtx, pingCancel := context.WithCancel(sessionCtx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if sessionCtx.Err() != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("scheduled session reset")
		}

		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatch(msg)
	}
}

func (f *WSFeed) dispatch(data []byte) {
	market, snapshot, bids, asks, ok := f.parse(data)
	if !ok {
		return
	}
	if snapshot {
		f.store.Snapshot(f.exchange, market, bids, asks)
		return
	}
	if len(bids) > 0 {
		f.store.Update(f.exchange, market, true, bids)
	}
	if len(asks) > 0 {
		f.store.Update(f.exchange, market, false, asks)
	}
}

func (f *WSFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.connMu.Lock()
			conn := f.conn
			f.connMu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

// --- Binance-like depth frames ---

type binanceDepthFrame struct {
	EventType string     `json:"e"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

// BinanceBookFrame parses a Binance-like partial-depth stream frame. Each
// frame carries the full top-N snapshot, so it is always treated as a
// snapshot rather than an incremental update.
func BinanceBookFrame(data []byte) (market string, snapshot bool, bids, asks []types.PriceLevel, ok bool) {
	var frame binanceDepthFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Symbol == "" {
		return "", false, nil, nil, false
	}
	if frame.EventType == "error" {
		return "", false, nil, nil, false
	}
	return frame.Symbol, true, parseLevels(frame.Bids), parseLevels(frame.Asks), true
}

func parseLevels(raw [][]string) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(pair[1])
		if err != nil {
			continue
		}
		out = append(out, types.PriceLevel{Price: price, Qty: qty})
	}
	return out
}

// --- Kraken-like book frames ---
//
// Kraken's public book feed sends [channelID, data, channelName, pair]
// tuples: a "bs"/"as" snapshot on subscribe, then "b"/"a" incremental
// updates per message afterward.

// KrakenBookFrame parses one Kraken-like book channel frame.
func KrakenBookFrame(data []byte) (market string, snapshot bool, bids, asks []types.PriceLevel, ok bool) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil || len(tuple) < 4 {
		return "", false, nil, nil, false
	}

	var pair string
	if err := json.Unmarshal(tuple[len(tuple)-1], &pair); err != nil || pair == "" {
		return "", false, nil, nil, false
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(tuple[1], &body); err != nil {
		return "", false, nil, nil, false
	}

	if rawBids, has := body["bs"]; has {
		var rawAsks json.RawMessage
		if v, ok := body["as"]; ok {
			rawAsks = v
		}
		return pair, true, krakenLevels(rawBids), krakenLevels(rawAsks), true
	}

	bids = krakenLevels(body["b"])
	asks = krakenLevels(body["a"])
	if len(bids) == 0 && len(asks) == 0 {
		return "", false, nil, nil, false
	}
	return pair, false, bids, asks, true
}

func krakenLevels(raw json.RawMessage) []types.PriceLevel {
	if len(raw) == 0 {
		return nil
	}
	var entries [][]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	out := make([]types.PriceLevel, 0, len(entries))
	for _, e := range entries {
		if len(e) < 2 {
			continue
		}
		price, err := decimal.NewFromString(e[0])
		if err != nil {
			continue
		}
		qty, err := decimal.NewFromString(e[1])
		if err != nil {
			continue
		}
		out = append(out, types.PriceLevel{Price: price, Qty: qty})
	}
	return out
}
