package scanner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"arby/internal/marketinfo"
	"arby/pkg/types"
)

type multiLegCandidate struct {
	a, b      string
	score     decimal.Decimal
	buyRate   decimal.Decimal // bid trade/buy_base on A
	sellRate  decimal.Decimal // ask trade/sell_base on B
	crossRate decimal.Decimal // ask cross_pair on B
	buyBook   types.OrderBookEntry
	sellBook  types.OrderBookEntry
}

// evaluateMultiLeg scores a three-leg route: buy `trade` against buy_base on
// A, sell `trade` against sell_base on B, then B buys back buy_base with the
// sell_base proceeds via the cross pair.
func (s *Scanner) evaluateMultiLeg(ctx context.Context, r types.Route) {
	var best *multiLegCandidate

	for _, a := range s.venues {
		for _, b := range s.venues {
			if a == b {
				continue
			}
			buyBook, freshBuy := s.isFresh(a, r.BuyMarket.ID())
			sellBook, freshSell := s.isFresh(b, r.SellMarket.ID())
			crossBook, freshCross := s.isFresh(b, r.CrossPair.ID())
			if !freshBuy || !freshSell || !freshCross {
				continue
			}
			buyRate, okBuy := buyBook.BestBid()
			sellRate, okSell := sellBook.BestAsk()
			crossRate, okCross := crossBook.BestAsk()
			if !okBuy || !okSell || !okCross || sellRate.IsZero() || crossRate.IsZero() {
				continue
			}
			score := buyRate.Div(sellRate.Mul(crossRate)).Sub(one)
			if best == nil || score.GreaterThan(best.score) {
				best = &multiLegCandidate{
					a: a, b: b, score: score,
					buyRate: buyRate, sellRate: sellRate, crossRate: crossRate,
					buyBook: buyBook, sellBook: sellBook,
				}
			}
		}
	}

	label := r.Label()
	if best == nil {
		s.stats.Record(RouteSnapshot{Label: label})
		return
	}
	s.stats.Record(RouteSnapshot{Label: label, Score: best.score, BuyExchange: best.a, SellExchange: best.b, BuyRate: best.buyRate, SellRate: best.sellRate})

	infoBuy, okBuy := s.marketInfo.Get(best.a, r.BuyMarket.ID())
	infoSell, okSell := s.marketInfo.Get(best.b, r.SellMarket.ID())
	infoCross, okCross := s.marketInfo.Get(best.b, r.CrossPair.ID())
	if !okBuy || !okSell || !okCross {
		return
	}

	thresh := threshold(s.minProfit, []decimal.Decimal{infoBuy.TradeFee, infoSell.TradeFee, infoCross.TradeFee})
	if best.score.LessThan(thresh) {
		return
	}

	ethBtcBuy, haveEthBtcBuy := s.ethBtcBid(best.a)
	ethBtcSell, haveEthBtcSell := s.ethBtcBid(best.b)
	minValBuy := marketinfo.MinOrderValue(r.BuyMarket.Base, infoBuy, ethBtcBuy, haveEthBtcBuy)
	minValSell := marketinfo.MinOrderValue(r.SellMarket.Base, infoSell, ethBtcSell, haveEthBtcSell)
	if marketinfo.IsUnresolved(minValBuy) || marketinfo.IsUnresolved(minValSell) {
		return
	}

	newBuy, newSell, r2 := multiLegRates(best.buyRate, best.sellRate, best.crossRate, infoBuy.TradeFee, infoSell.TradeFee, infoCross.TradeFee, infoBuy.RatePrecision, infoSell.RatePrecision)

	walletBuy := s.wallets.Available(best.a, r.BuyBase)
	walletSell := s.wallets.Available(best.b, r.Trade).Mul(newSell)
	walletCrossFunding := s.wallets.Available(best.b, r.BuyBase)

	obvBuy := bookValueTo(toLevelViews(best.buyBook.Bids), newBuy, true).Div(three)
	obvSell := bookValueTo(toLevelViews(best.sellBook.Asks), newSell, false).Div(three)

	orderSize := minDecimal(obvBuy, obvSell, walletBuy, walletSell, walletCrossFunding)
	if !sizingSucceeds(orderSize, minValBuy, minValSell) {
		return
	}

	qtyBuy := roundDown(orderSize.Div(newBuy), infoBuy.VolumePrecision)
	qtySell := roundDown(qtyBuy, infoSell.VolumePrecision)

	opp := types.Opportunity{
		Ts:           time.Now(),
		RouteType:    "multi_leg",
		RouteLabel:   label,
		BuyExchange:  best.a,
		SellExchange: best.b,
		SpreadPct:    r2.Sub(one),
		BuyRate:      newBuy,
		SellRate:     newSell,
		CrossRate:    &best.crossRate,
		QtyA:         qtyBuy,
		QtyB:         qtySell,
		DryRun:       s.dryRun,
	}

	if s.dryRun {
		s.recordOpportunity(opp)
		return
	}

	// W1 buys `trade` against buy_base on A; W2 sells `trade` against
	// sell_base on B, then follows up buying back buy_base via the cross pair.
	tdA := types.TradeDescriptor{Side: types.BUY, Exchange: best.a, Market: r.BuyMarket, Rate: newBuy, Volume: qtyBuy, MinOrderValue: minValBuy}
	tdB := types.TradeDescriptor{
		Side: types.SELL, Exchange: best.b, Market: r.SellMarket, Rate: newSell, Volume: qtySell, MinOrderValue: minValSell,
		FollowUp: &types.FollowUpLeg{Side: types.BUY, Exchange: best.b, Market: r.CrossPair, Rate: best.crossRate},
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
