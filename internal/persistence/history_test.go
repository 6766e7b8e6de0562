package persistence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

type countingSink struct {
	opps     int
	legs     int
	balances int
}

func (c *countingSink) RecordOpportunity(types.Opportunity) error {
	c.opps++
	return nil
}

func (c *countingSink) RecordLeg(orderID string, leg types.OrderLeg) error {
	c.legs++
	return nil
}

func (c *countingSink) RecordBalances(ts time.Time, totals map[string]decimal.Decimal) error {
	c.balances++
	return nil
}

func (c *countingSink) Close() error { return nil }

func TestRecentSinkForwardsToNext(t *testing.T) {
	next := &countingSink{}
	s := NewRecentSink(next, 10)

	s.RecordOpportunity(testOpportunity())
	s.RecordLeg("order-1", types.OrderLeg{})
	s.RecordBalances(time.Unix(0, 0), nil)

	if next.opps != 1 || next.legs != 1 || next.balances != 1 {
		t.Errorf("next sink counts = %+v, want all 1", next)
	}
}

func TestRecentSinkWorksWithNilNext(t *testing.T) {
	s := NewRecentSink(nil, 10)
	if err := s.RecordOpportunity(testOpportunity()); err != nil {
		t.Fatalf("RecordOpportunity with nil next: %v", err)
	}
	if err := s.RecordLeg("order-1", types.OrderLeg{}); err != nil {
		t.Fatalf("RecordLeg with nil next: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close with nil next: %v", err)
	}
}

func TestRecentSinkBoundsHistoryToLimit(t *testing.T) {
	s := NewRecentSink(nil, 3)
	for i := 0; i < 5; i++ {
		s.RecordOpportunity(testOpportunity())
	}
	if got := len(s.RecentOpportunities()); got != 3 {
		t.Errorf("RecentOpportunities() len = %d, want 3", got)
	}
}

func TestRecentSinkDefaultsLimitWhenNonPositive(t *testing.T) {
	s := NewRecentSink(nil, 0)
	if s.limit != 200 {
		t.Errorf("limit = %d, want default 200", s.limit)
	}
}

func TestRecentLegsPreservesOrderIDAndLeg(t *testing.T) {
	s := NewRecentSink(nil, 10)
	leg := types.OrderLeg{Exchange: "binance", Side: types.BUY, Volume: decimal.RequireFromString("2")}
	s.RecordLeg("order-9", leg)

	got := s.RecentLegs()
	if len(got) != 1 {
		t.Fatalf("RecentLegs() len = %d, want 1", len(got))
	}
	if got[0].OrderID != "order-9" || !got[0].Leg.Volume.Equal(leg.Volume) {
		t.Errorf("RecentLegs()[0] = %+v, want order-9 with volume %s", got[0], leg.Volume)
	}
}

func TestAppendBoundedDropsOldestFirst(t *testing.T) {
	var s []int
	for i := 0; i < 5; i++ {
		s = appendBounded(s, i, 3)
	}
	want := []int{2, 3, 4}
	if len(s) != len(want) {
		t.Fatalf("len = %d, want %d", len(s), len(want))
	}
	for i := range want {
		if s[i] != want[i] {
			t.Errorf("s[%d] = %d, want %d", i, s[i], want[i])
		}
	}
}
