// Package coordinator runs the two-worker execution state machine: given a
// primary TradeDescriptor per leg (and an optional follow-up), it places,
// retries, and chases fills until the remaining order value drops below the
// venue's minimum, or retries are exhausted.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"arby/internal/exchange"
	"arby/internal/marketinfo"
	"arby/pkg/types"
)

const maxRetries = 5

var (
	one            = decimal.NewFromInt(1)
	rateWalkFactor = decimal.NewFromFloat(0.001)
)

// Worker executes one side of a route: its primary leg, then — if the
// descriptor carries one — a follow-up leg funded by the primary's proceeds.
type Worker struct {
	adapters   map[string]exchange.Adapter
	marketInfo *marketinfo.Cache
	logger     *slog.Logger
}

// NewWorker creates a worker dispatching orders through the given adapters,
// keyed by exchange name.
func NewWorker(adapters map[string]exchange.Adapter, marketInfo *marketinfo.Cache, logger *slog.Logger) *Worker {
	return &Worker{adapters: adapters, marketInfo: marketInfo, logger: logger}
}

// legResult is what a completed retry-and-chase loop hands back for
// follow-up volume computation.
type legResult struct {
	filledVolume decimal.Decimal // sum of filled quantities across all orders
	proceeds     decimal.Decimal // original order_value minus what remains unfilled
}

// Run executes td's primary leg, then its follow-up leg if present.
func (w *Worker) Run(ctx context.Context, td types.TradeDescriptor) []types.OrderLeg {
	var legs []types.OrderLeg

	primary := w.runLeg(ctx, td, &legs)

	if td.FollowUp != nil {
		followUpVolume := followUpVolume(td.Side, td.FollowUp.Side, td.FollowUp.Rate, primary)
		followUpTD := types.TradeDescriptor{
			Side:          td.FollowUp.Side,
			Exchange:      td.FollowUp.Exchange,
			Market:        td.FollowUp.Market,
			Rate:          td.FollowUp.Rate,
			Volume:        followUpVolume,
			MinOrderValue: td.MinOrderValue,
		}
		w.runLeg(ctx, followUpTD, &legs)
	}

	return legs
}

// followUpVolume derives the follow-up leg's volume from the primary leg's
// result, per the three follow-up volume rules.
func followUpVolume(primarySide, followUpSide types.Side, followUpRate decimal.Decimal, primary legResult) decimal.Decimal {
	switch {
	case primarySide == types.SELL && followUpSide == types.BUY:
		if followUpRate.IsZero() {
			return decimal.Zero
		}
		return primary.proceeds.Div(followUpRate)
	case primarySide == types.BUY && followUpSide == types.BUY:
		return primary.proceeds
	case primarySide == types.SELL && followUpSide == types.SELL:
		return primary.filledVolume
	default:
		return primary.filledVolume
	}
}

// runLeg executes the place/backoff/cancel/query/chase loop for a single
// leg and appends every filled order to legs.
func (w *Worker) runLeg(ctx context.Context, td types.TradeDescriptor, legs *[]types.OrderLeg) legResult {
	adapter, ok := w.adapters[td.Exchange]
	if !ok {
		w.logger.Error("no adapter for exchange", "exchange", td.Exchange)
		return legResult{}
	}

	info, _ := w.marketInfo.Get(td.Exchange, td.Market.ID())

	orderValue := td.Rate.Mul(td.Volume)
	rate := td.Rate
	volume := td.Volume
	retries := 0
	var totalFilled decimal.Decimal
	var consumedValue decimal.Decimal

	for volume.Mul(rate).GreaterThan(td.MinOrderValue) && retries < maxRetries {
		quantRate := rate.Truncate(info.RatePrecision)
		quantVolume := volume.Truncate(info.VolumePrecision)

		orderID, err := adapter.PlaceOrder(ctx, td.Market, td.Side, quantRate, quantVolume)
		if err != nil || orderID == "" {
			retries++
			backoff := backoffFor(retries)
			w.logger.Warn("order failed, backing off", "exchange", td.Exchange, "market", td.Market.ID(), "retry", retries, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return legResult{filledVolume: totalFilled, proceeds: consumedValue}
			}
			continue
		}

		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return legResult{filledVolume: totalFilled, proceeds: consumedValue}
		}

		if err := adapter.CancelOrder(ctx, td.Market, orderID); err != nil {
			w.logger.Warn("cancel order failed", "exchange", td.Exchange, "order_id", orderID, "error", err)
		}

		status, err := adapter.GetOrderStatus(ctx, td.Market, orderID)
		if err != nil {
			w.logger.Warn("could not get order status, stopping leg", "exchange", td.Exchange, "order_id", orderID, "error", err)
			break
		}

		filled := status.Quantity.Sub(status.QuantityRemaining)
		*legs = append(*legs, types.OrderLeg{
			Exchange: td.Exchange,
			Market:   td.Market,
			Side:     td.Side,
			Rate:     status.Price,
			Volume:   filled,
			OrigID:   orderID,
			Ts:       time.Now(),
		})
		totalFilled = totalFilled.Add(filled)
		consumedValue = consumedValue.Add(rate.Mul(filled))
		orderValue = orderValue.Sub(rate.Mul(filled))

		// Walk the rate to chase liquidity, not to improve price: SELL steps down, BUY steps up.
		change := maxDecimal(rate.Mul(rateWalkFactor), decimal.New(1, -info.RatePrecision))
		if td.Side == types.SELL {
			rate = rate.Sub(change)
		} else {
			rate = rate.Add(change)
		}

		if td.Side == types.BUY {
			volume = roundDown(orderValue.Div(rate), info.VolumePrecision)
		} else {
			volume = roundDown(status.QuantityRemaining, info.VolumePrecision)
		}
	}

	return legResult{filledVolume: totalFilled, proceeds: consumedValue}
}

func backoffFor(retry int) time.Duration {
	seconds := 1 << retry
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

func roundDown(x decimal.Decimal, n int32) decimal.Decimal {
	return x.Truncate(n)
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
