package route

import (
	"testing"

	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

func TestDeriveRolesClassifiesByMarketSide(t *testing.T) {
	info := types.MarketInfo{TradeFee: decimal.Zero}
	venueA := map[string]types.MarketInfo{
		"ETHBTC": info, // ETH trade, BTC base
		"XLMBTC": info, // XLM trade, BTC base
	}
	roles := DeriveRoles([]string{"ETH", "BTC", "XLM"}, []map[string]types.MarketInfo{venueA})

	if roles["BTC"] != types.BaseOnly {
		t.Errorf("BTC = %v, want BASE_ONLY", roles["BTC"])
	}
	if roles["ETH"] != types.TradeOnly {
		t.Errorf("ETH = %v, want TRADE_ONLY", roles["ETH"])
	}
	if roles["XLM"] != types.TradeOnly {
		t.Errorf("XLM = %v, want TRADE_ONLY", roles["XLM"])
	}
}

func TestDeriveRolesBaseAndTrade(t *testing.T) {
	info := types.MarketInfo{}
	venueA := map[string]types.MarketInfo{
		"ETHBTC": info, // ETH trade, BTC base
		"XLMETH": info, // XLM trade, ETH base -> ETH also a base
	}
	roles := DeriveRoles([]string{"ETH", "BTC", "XLM"}, []map[string]types.MarketInfo{venueA})

	if roles["ETH"] != types.BaseAndTrade {
		t.Errorf("ETH = %v, want BASE_AND_TRADE", roles["ETH"])
	}
}

func TestDeriveRolesDropsUnobservedCurrency(t *testing.T) {
	info := types.MarketInfo{}
	venueA := map[string]types.MarketInfo{"ETHBTC": info}
	roles := DeriveRoles([]string{"ETH", "BTC", "ADA"}, []map[string]types.MarketInfo{venueA})

	if _, ok := roles["ADA"]; ok {
		t.Errorf("ADA should not get a role, never observed in any discovered market")
	}
}

func TestBuildActivePairsRequiresAllVenues(t *testing.T) {
	info := types.MarketInfo{}
	venueA := map[string]types.MarketInfo{"ETHBTC": info, "XLMBTC": info}
	venueB := map[string]types.MarketInfo{"ETHBTC": info}

	active := BuildActivePairs([]map[string]types.MarketInfo{venueA, venueB})

	if !active.Has(types.Market{Trade: "ETH", Base: "BTC"}) {
		t.Error("ETHBTC listed on both venues should be active")
	}
	if active.Has(types.Market{Trade: "XLM", Base: "BTC"}) {
		t.Error("XLMBTC only on venueA should not be active")
	}
}
