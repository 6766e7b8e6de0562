package scanner

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDirectRatesFromLiteralScenario(t *testing.T) {
	// Venue_A bid 0.06500, Venue_B ask 0.06450, fees 0.001 each.
	a := dec("0.06500")
	b := dec("0.06450")
	fee := dec("0.001")

	newA, newB, r := directRates(a, b, fee, fee, 8, 8)

	if !newA.GreaterThanOrEqual(dec("0")) {
		t.Fatalf("newA should be positive, got %s", newA)
	}
	if newA.LessThan(newB) {
		t.Errorf("adjusted A (%s) should stay >= adjusted B (%s) pre-fee ordering invariant", newA, newB)
	}
	if r.LessThanOrEqual(decimal.Zero) {
		t.Errorf("r should be positive, got %s", r)
	}
}

func TestMultiLegRatesPullsBuyDownAndSellUp(t *testing.T) {
	buyRate := dec("0.0001")
	sellRate := dec("0.0000065")
	crossRate := dec("0.065")
	fee := dec("0.001")

	newBuy, newSell, r := multiLegRates(buyRate, sellRate, crossRate, fee, fee, fee, 8, 8)

	if !newBuy.LessThan(buyRate) {
		t.Errorf("newBuy = %s, want pulled below raw buyRate %s", newBuy, buyRate)
	}
	if !newSell.GreaterThan(sellRate) {
		t.Errorf("newSell = %s, want pulled above raw sellRate %s", newSell, sellRate)
	}
	if r.LessThanOrEqual(decimal.Zero) {
		t.Errorf("r should be positive, got %s", r)
	}
}

func TestMultiLegRatesReservesMarginAgainstRawSpread(t *testing.T) {
	buyRate := dec("0.0001")
	sellRate := dec("0.0000065")
	crossRate := dec("0.065")
	zero := decimal.Zero

	newBuy, newSell, _ := multiLegRates(buyRate, sellRate, crossRate, zero, zero, zero, 8, 8)
	rawSpread := buyRate.Sub(sellRate.Mul(crossRate))
	adjustedSpread := newBuy.Sub(newSell.Mul(crossRate))

	if !adjustedSpread.LessThan(rawSpread) {
		t.Errorf("adjusted spread (%s) should be smaller than the raw spread (%s), reserving margin", adjustedSpread, rawSpread)
	}
	if !adjustedSpread.IsPositive() {
		t.Errorf("adjusted spread = %s, want still positive", adjustedSpread)
	}
}

func TestCrossRatesPullsBothPairsInward(t *testing.T) {
	bidX := dec("0.068")
	askX := dec("0.067")
	bidY := dec("0.0000066")
	askY := dec("0.0000065")
	fee := dec("0.001")

	newBidX, newAskX, newBidY, newAskY, r := crossRates(bidX, askX, bidY, askY, fee, fee, fee, fee, 8, 8, 8, 8)

	if !newBidX.LessThan(bidX) {
		t.Errorf("newBidX = %s, want pulled below raw bidX %s", newBidX, bidX)
	}
	if !newAskX.GreaterThan(askX) {
		t.Errorf("newAskX = %s, want pulled above raw askX %s", newAskX, askX)
	}
	if !newBidY.LessThan(bidY) {
		t.Errorf("newBidY = %s, want pulled below raw bidY %s", newBidY, bidY)
	}
	if !newAskY.GreaterThan(askY) {
		t.Errorf("newAskY = %s, want pulled above raw askY %s", newAskY, askY)
	}
	if r.LessThanOrEqual(decimal.Zero) {
		t.Errorf("r should be positive, got %s", r)
	}
}

func TestThresholdMatchesLiteralScenario(t *testing.T) {
	minProfit := dec("0.001")
	fees := []decimal.Decimal{dec("0.001"), dec("0.001")}
	got := threshold(minProfit, fees)

	want := dec("0.003003") // 1.001^3 - 1 truncated sense; check within tolerance
	diff := got.Sub(want).Abs()
	if diff.GreaterThan(dec("0.0001")) {
		t.Errorf("threshold = %s, want close to %s", got, want)
	}
}

func TestRoundDownAndRoundUp(t *testing.T) {
	x := dec("1.23456")
	if got := roundDown(x, 2); !got.Equal(dec("1.23")) {
		t.Errorf("roundDown(%s, 2) = %s, want 1.23", x, got)
	}
	if got := roundUp(x, 2); !got.Equal(dec("1.24")) {
		t.Errorf("roundUp(%s, 2) = %s, want 1.24", x, got)
	}
	exact := dec("1.20")
	if got := roundUp(exact, 2); !got.Equal(exact) {
		t.Errorf("roundUp(%s, 2) = %s, want unchanged", exact, got)
	}
}

func TestSizingSucceedsRespectsMargin(t *testing.T) {
	minA := dec("10")
	minB := dec("20")
	if sizingSucceeds(dec("25"), minA, minB) {
		t.Error("order size of 25 should not clear max(10,20)*1.25=25 (strict >)")
	}
	if !sizingSucceeds(dec("25.01"), minA, minB) {
		t.Error("order size of 25.01 should clear the 1.25x margin")
	}
}

func TestBookValueToSumsOnlyQualifyingLevels(t *testing.T) {
	bids := []levelView{
		{Price: dec("10"), Qty: dec("1")},
		{Price: dec("9"), Qty: dec("2")},
		{Price: dec("8"), Qty: dec("3")},
	}
	got := bookValueTo(bids, dec("9"), true)
	want := dec("9").Mul(dec("3")) // levels at 10 and 9 qualify: (1+2)=3 units * rate 9
	if !got.Equal(want) {
		t.Errorf("bookValueTo = %s, want %s", got, want)
	}
}
