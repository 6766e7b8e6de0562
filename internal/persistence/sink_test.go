package persistence

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}

func testOpportunity() types.Opportunity {
	return types.Opportunity{
		Ts:          time.Unix(0, 0),
		RouteType:   "direct",
		RouteLabel:  "binance/kraken ETHBTC",
		BuyExchange: "binance",
		SellExchange: "kraken",
		SpreadPct:   decimal.RequireFromString("0.01"),
		BuyRate:     decimal.RequireFromString("0.065"),
		SellRate:    decimal.RequireFromString("0.0657"),
		QtyA:        decimal.RequireFromString("1"),
		QtyB:        decimal.RequireFromString("1"),
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")
	if _, err := Open(dir); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected %s to be a directory, err=%v", dir, err)
	}
}

func TestRecordOpportunityAppendsJSONLine(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.RecordOpportunity(testOpportunity()); err != nil {
		t.Fatal(err)
	}
	if err := sink.RecordOpportunity(testOpportunity()); err != nil {
		t.Fatal(err)
	}

	n := countLines(t, filepath.Join(dir, "opportunities.jsonl"))
	if n != 2 {
		t.Errorf("opportunities.jsonl has %d lines, want 2", n)
	}
}

func TestRecordLegAppendsJSONLine(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	leg := types.OrderLeg{Exchange: "binance", Market: types.Market{Trade: "ETH", Base: "BTC"}, Side: types.BUY, Rate: decimal.RequireFromString("0.065"), Volume: decimal.RequireFromString("1")}
	if err := sink.RecordLeg("order-1", leg); err != nil {
		t.Fatal(err)
	}

	n := countLines(t, filepath.Join(dir, "order_legs.jsonl"))
	if n != 1 {
		t.Errorf("order_legs.jsonl has %d lines, want 1", n)
	}
}

func TestRecordBalancesAppendsJSONLine(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	totals := map[string]decimal.Decimal{"BTC": decimal.RequireFromString("1.5")}
	if err := sink.RecordBalances(time.Unix(0, 0), totals); err != nil {
		t.Fatal(err)
	}

	n := countLines(t, filepath.Join(dir, "balances.jsonl"))
	if n != 1 {
		t.Errorf("balances.jsonl has %d lines, want 1", n)
	}
}
