package scanner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"arby/internal/marketinfo"
	"arby/pkg/types"
)

type crossCandidate struct {
	a, b       string
	score      decimal.Decimal
	bidX, bidY decimal.Decimal
	askX, askY decimal.Decimal
	bookXA     types.OrderBookEntry
	bookYB     types.OrderBookEntry
}

// evaluateCross scores a four-leg route between two trade currencies
// sharing a base: A sells X and buys Y, B mirrors (sells Y, buys X).
func (s *Scanner) evaluateCross(ctx context.Context, r types.Route) {
	var best *crossCandidate

	for _, a := range s.venues {
		for _, b := range s.venues {
			if a == b {
				continue
			}
			bookXA, freshXA := s.isFresh(a, r.MarketX.ID())
			bookYA, freshYA := s.isFresh(a, r.MarketY.ID())
			bookXB, freshXB := s.isFresh(b, r.MarketX.ID())
			bookYB, freshYB := s.isFresh(b, r.MarketY.ID())
			if !freshXA || !freshYA || !freshXB || !freshYB {
				continue
			}
			bidX, okBidX := bookXA.BestBid()
			askX, okAskX := bookXB.BestAsk()
			bidY, okBidY := bookYB.BestBid()
			askY, okAskY := bookYA.BestAsk()
			if !okBidX || !okAskX || !okBidY || !okAskY || askX.IsZero() || askY.IsZero() {
				continue
			}
			score := bidX.Mul(bidY).Div(askY.Mul(askX)).Sub(one)
			if best == nil || score.GreaterThan(best.score) {
				best = &crossCandidate{
					a: a, b: b, score: score, bidX: bidX, bidY: bidY, askX: askX, askY: askY,
					bookXA: bookXA, bookYB: bookYB,
				}
			}
		}
	}

	label := r.Label()
	if best == nil {
		s.stats.Record(RouteSnapshot{Label: label})
		return
	}
	s.stats.Record(RouteSnapshot{Label: label, Score: best.score, BuyExchange: best.a, SellExchange: best.b})

	infoXA, okXA := s.marketInfo.Get(best.a, r.MarketX.ID())
	infoYA, okYA := s.marketInfo.Get(best.a, r.MarketY.ID())
	infoXB, okXB := s.marketInfo.Get(best.b, r.MarketX.ID())
	infoYB, okYB := s.marketInfo.Get(best.b, r.MarketY.ID())
	if !okXA || !okYA || !okXB || !okYB {
		return
	}

	thresh := threshold(s.minProfit, []decimal.Decimal{infoXA.TradeFee, infoYA.TradeFee, infoXB.TradeFee, infoYB.TradeFee})
	if best.score.LessThan(thresh) {
		return
	}

	ethBtcA, haveEthBtcA := s.ethBtcBid(best.a)
	ethBtcB, haveEthBtcB := s.ethBtcBid(best.b)
	minValA := marketinfo.MinOrderValue(r.Base, infoXA, ethBtcA, haveEthBtcA)
	minValB := marketinfo.MinOrderValue(r.Base, infoXB, ethBtcB, haveEthBtcB)
	if marketinfo.IsUnresolved(minValA) || marketinfo.IsUnresolved(minValB) {
		return
	}

	newBidX, newAskX, newBidY, newAskY, r2 := crossRates(
		best.bidX, best.askX, best.bidY, best.askY,
		infoXA.TradeFee, infoXB.TradeFee, infoYB.TradeFee, infoYA.TradeFee,
		infoXA.RatePrecision, infoXB.RatePrecision, infoYB.RatePrecision, infoYA.RatePrecision,
	)

	walletX := s.wallets.Available(best.a, r.TradeX).Mul(newBidX)
	walletY := s.wallets.Available(best.b, r.TradeY).Mul(newBidY)

	obvX := bookValueTo(toLevelViews(best.bookXA.Bids), newBidX, true).Div(three)
	obvY := bookValueTo(toLevelViews(best.bookYB.Bids), newBidY, true).Div(three)

	orderSize := minDecimal(obvX, obvY, walletX, walletY)
	if !sizingSucceeds(orderSize, minValA, minValB) {
		return
	}

	qtyX := roundDown(orderSize.Div(newBidX), infoXA.VolumePrecision)
	qtyY := roundDown(orderSize.Div(newBidY), infoYB.VolumePrecision)

	opp := types.Opportunity{
		Ts:           time.Now(),
		RouteType:    "cross",
		RouteLabel:   label,
		BuyExchange:  best.a,
		SellExchange: best.b,
		SpreadPct:    r2.Sub(one),
		BuyRate:      newBidX,
		SellRate:     newAskX,
		QtyA:         qtyX,
		QtyB:         qtyY,
		DryRun:       s.dryRun,
	}

	if s.dryRun {
		s.recordOpportunity(opp)
		return
	}

	// W1: A sells X, follows up buying Y with the proceeds.
	// W2: B sells Y, follows up buying X with the proceeds.
	tdA := types.TradeDescriptor{
		Side: types.SELL, Exchange: best.a, Market: r.MarketX, Rate: newBidX, Volume: qtyX, MinOrderValue: minValA,
		FollowUp: &types.FollowUpLeg{Side: types.BUY, Exchange: best.a, Market: r.MarketY, Rate: newAskY},
	}
	tdB := types.TradeDescriptor{
		Side: types.SELL, Exchange: best.b, Market: r.MarketY, Rate: newBidY, Volume: qtyY, MinOrderValue: minValB,
		FollowUp: &types.FollowUpLeg{Side: types.BUY, Exchange: best.b, Market: r.MarketX, Rate: newAskX},
	}

	legs, ok := s.exec.Execute(ctx, tdA, tdB, s.followUpTimeout)
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
