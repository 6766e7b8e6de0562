package persistence

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

// RecentSink wraps another Sink and additionally retains the last N
// opportunities and order legs in memory, for the dashboard's /opportunities
// and /trades endpoints to read back without re-parsing the JSONL log.
type RecentSink struct {
	next Sink

	mu    sync.RWMutex
	opps  []types.Opportunity
	legs  []legRecord
	limit int
}

// NewRecentSink wraps next, keeping up to limit records per kind (oldest
// dropped first). next may be nil to only keep the in-memory history.
func NewRecentSink(next Sink, limit int) *RecentSink {
	if limit <= 0 {
		limit = 200
	}
	return &RecentSink{next: next, limit: limit}
}

func (s *RecentSink) RecordOpportunity(o types.Opportunity) error {
	s.mu.Lock()
	s.opps = appendBounded(s.opps, o, s.limit)
	s.mu.Unlock()
	if s.next == nil {
		return nil
	}
	return s.next.RecordOpportunity(o)
}

func (s *RecentSink) RecordLeg(orderID string, leg types.OrderLeg) error {
	s.mu.Lock()
	s.legs = appendBounded(s.legs, legRecord{OrderID: orderID, OrderLeg: leg}, s.limit)
	s.mu.Unlock()
	if s.next == nil {
		return nil
	}
	return s.next.RecordLeg(orderID, leg)
}

func (s *RecentSink) RecordBalances(ts time.Time, totals map[string]decimal.Decimal) error {
	if s.next == nil {
		return nil
	}
	return s.next.RecordBalances(ts, totals)
}

func (s *RecentSink) Close() error {
	if s.next == nil {
		return nil
	}
	return s.next.Close()
}

// RecentOpportunities returns the most recently recorded opportunities, newest last.
func (s *RecentSink) RecentOpportunities() []types.Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Opportunity, len(s.opps))
	copy(out, s.opps)
	return out
}

// RecentLegs returns the most recently recorded order legs, newest last.
func (s *RecentSink) RecentLegs() []struct {
	OrderID string
	Leg     types.OrderLeg
} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]struct {
		OrderID string
		Leg     types.OrderLeg
	}, len(s.legs))
	for i, l := range s.legs {
		out[i] = struct {
			OrderID string
			Leg     types.OrderLeg
		}{OrderID: l.OrderID, Leg: l.OrderLeg}
	}
	return out
}

func appendBounded[T any](slice []T, v T, limit int) []T {
	slice = append(slice, v)
	if len(slice) > limit {
		slice = slice[len(slice)-limit:]
	}
	return slice
}
