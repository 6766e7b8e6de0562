// Package scanner evaluates every route on a fixed tick, picks the best
// venue pair per route, and sizes the resulting opportunity.
package scanner

import (
	"github.com/shopspring/decimal"
)

var (
	one       = decimal.NewFromInt(1)
	three     = decimal.NewFromInt(3)
	margin125 = decimal.NewFromFloat(1.25)
)

// roundDown truncates x to n decimal places.
func roundDown(x decimal.Decimal, n int32) decimal.Decimal {
	return x.Truncate(n)
}

// roundUp rounds x up (away from zero, toward +inf for positive x) to n
// decimal places.
func roundUp(x decimal.Decimal, n int32) decimal.Decimal {
	truncated := x.Truncate(n)
	if truncated.Equal(x) {
		return truncated
	}
	step := decimal.New(1, -n)
	return truncated.Add(step)
}

// threshold computes the dynamic profit threshold for a route with the
// given per-leg fees: (1+minProfit) * Π(1+fee_i) - 1.
func threshold(minProfit decimal.Decimal, fees []decimal.Decimal) decimal.Decimal {
	acc := one.Add(minProfit)
	for _, f := range fees {
		acc = acc.Mul(one.Add(f))
	}
	return acc.Sub(one)
}

// directRates applies the direct-route rate adjustment: pull both sides
// inward by a third of the fee-adjusted spread, then re-gross for fees.
// Returns the adjusted (A, B) and the post-fee ratio r = net_sell/net_buy.
func directRates(a, b, feeA, feeB decimal.Decimal, ratePrecisionA, ratePrecisionB int32) (newA, newB, r decimal.Decimal) {
	buyNet := a.Div(one.Add(feeA))
	sellNet := b.Mul(one.Add(feeB))
	diff := buyNet.Sub(sellNet)
	third := diff.Div(three)

	newA = roundUp(buyNet.Sub(third).Mul(one.Add(feeA)), ratePrecisionA)
	newB = roundDown(sellNet.Add(third).Div(one.Add(feeB)), ratePrecisionB)

	buyNetFinal := newA.Div(one.Add(feeA))
	sellNetFinal := newB.Mul(one.Add(feeB))
	r = sellNetFinal.Div(buyNetFinal)
	return
}

// multiLegRates applies the calc_rates margin-capture analogue to a
// three-leg multi-leg route: the fee-adjusted spread is buy_net minus
// sell_net * cross_net; buyRate is pulled inward by a third of it as
// directRates' A is, sellRate by that third converted into sell_base units,
// with crossRate left at its observed value (it
// prices the follow-up leg and doubles as the unit conversion the spec's
// distribution rule calls for). Returns the adjusted (buy, sell) and the
// post-fee ratio r = (sell_rate_net * cross_rate) / buy_rate_net.
func multiLegRates(buyRate, sellRate, crossRate, feeBuy, feeSell, feeCross decimal.Decimal, ratePrecisionBuy, ratePrecisionSell int32) (newBuy, newSell, r decimal.Decimal) {
	buyNet := buyRate.Div(one.Add(feeBuy))
	sellNetOwn := sellRate.Mul(one.Add(feeSell))
	crossNet := crossRate.Mul(one.Add(feeCross))
	diff := buyNet.Sub(sellNetOwn.Mul(crossNet))
	third := diff.Div(three)

	newBuy = roundUp(buyNet.Sub(third).Mul(one.Add(feeBuy)), ratePrecisionBuy)
	// third is denominated in buy_base units; dividing by the fee-grossed cross rate converts
	// the sell leg's share of the margin into sell_base units.
	newSell = roundDown(sellNetOwn.Add(third.Div(crossNet)).Div(one.Add(feeSell)), ratePrecisionSell)

	buyNetFinal := newBuy.Div(one.Add(feeBuy))
	sellNetFinal := newSell.Mul(one.Add(feeSell))
	r = sellNetFinal.Mul(crossRate).Div(buyNetFinal)
	return
}

// crossRates applies the calc_rates margin-capture analogue to a four-leg
// cross route by treating it as two independent price pairs sharing the
// base currency: (bidX, askX) and (bidY, askY), each run through
// directRates exactly as a direct route's A/B. Returns all four adjusted
// rates and the post-fee ratio r = (bid_x_net * bid_y_net) / (ask_y_net *
// ask_x_net).
func crossRates(bidX, askX, bidY, askY, feeXA, feeXB, feeYB, feeYA decimal.Decimal, ratePrecisionXA, ratePrecisionXB, ratePrecisionYB, ratePrecisionYA int32) (newBidX, newAskX, newBidY, newAskY, r decimal.Decimal) {
	newBidX, newAskX, _ = directRates(bidX, askX, feeXA, feeXB, ratePrecisionXA, ratePrecisionXB)
	newBidY, newAskY, _ = directRates(bidY, askY, feeYB, feeYA, ratePrecisionYB, ratePrecisionYA)

	bidXNet := newBidX.Div(one.Add(feeXA))
	askXNet := newAskX.Mul(one.Add(feeXB))
	bidYNet := newBidY.Div(one.Add(feeYB))
	askYNet := newAskY.Mul(one.Add(feeYA))
	r = bidXNet.Mul(bidYNet).Div(askYNet.Mul(askXNet))
	return
}

// bookValueTo sums price*qty across levels on one side of a book out to
// (and including) the level at rate: bid levels counted while price >= rate,
// ask levels while price <= rate.
func bookValueTo(levels []levelView, rate decimal.Decimal, isBid bool) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range levels {
		if isBid && lvl.Price.LessThan(rate) {
			break
		}
		if !isBid && lvl.Price.GreaterThan(rate) {
			break
		}
		total = total.Add(lvl.Qty)
	}
	return total.Mul(rate)
}

type levelView struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// sizeVolumes implements calc_volumes for a two-leg pricing pair: given the
// minimum tradable order_size (already resolved by the caller across book
// depth and wallet constraints) and the final rate/ratio, derives qtyA and
// qtyB at each leg's volumePrecision, coarsest precision computed first.
func sizeVolumes(orderSize, r decimal.Decimal, bRateGross decimal.Decimal, feeB decimal.Decimal, precisionA, precisionB int32) (qtyA, qtyB decimal.Decimal) {
	sellNet := bRateGross.Mul(one.Add(feeB))
	if precisionA < precisionB {
		qtyA = roundDown(r.Mul(orderSize).Div(sellNet), precisionA)
		qtyB = roundDown(qtyA.Div(r), precisionB)
	} else {
		qtyB = roundDown(orderSize.Div(sellNet), precisionB)
		qtyA = roundDown(r.Mul(qtyB), precisionA)
	}
	return
}

// sizingSucceeds reports whether the minimum tradable order_size clears the
// 1.25x margin over the larger of the two legs' minOrderValue.
func sizingSucceeds(orderSize, minOrderValueA, minOrderValueB decimal.Decimal) bool {
	maxMin := minOrderValueA
	if minOrderValueB.GreaterThan(maxMin) {
		maxMin = minOrderValueB
	}
	return orderSize.GreaterThan(maxMin.Mul(margin125))
}

func minDecimal(vals ...decimal.Decimal) decimal.Decimal {
	if len(vals) == 0 {
		return decimal.Zero
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v.LessThan(m) {
			m = v
		}
	}
	return m
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
