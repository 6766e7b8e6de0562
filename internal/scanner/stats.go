package scanner

import (
	"sync"

	"github.com/shopspring/decimal"
)

var histogramBuckets = []decimal.Decimal{
	decimal.NewFromFloat(0.004),
	decimal.NewFromFloat(0.005),
	decimal.NewFromFloat(0.0075),
	decimal.NewFromFloat(0.01),
}

// RouteSnapshot is the published best-(A,B) result for one route, read by
// the control-plane dashboard.
type RouteSnapshot struct {
	Label       string
	Score       decimal.Decimal
	BuyExchange string
	SellExchange string
	BuyRate     decimal.Decimal
	SellRate    decimal.Decimal
}

// Stats tracks, per route label, the live best-pair snapshot, a histogram
// of how often the score cleared each of four fixed buckets, and the
// highest score ever observed. Modeled on the rolling-window, mutex-guarded
// tracker shape used for fill-flow monitoring, repurposed here for
// route-score history instead of fill toxicity.
type Stats struct {
	mu         sync.RWMutex
	snapshots  map[string]RouteSnapshot
	histograms map[string][4]int
	highest    map[string]decimal.Decimal
}

// NewStats creates an empty route-score tracker.
func NewStats() *Stats {
	return &Stats{
		snapshots:  make(map[string]RouteSnapshot),
		histograms: make(map[string][4]int),
		highest:    make(map[string]decimal.Decimal),
	}
}

// Record publishes the latest best-pair snapshot for a route and updates
// its histogram buckets and highest-seen score.
func (s *Stats) Record(snap RouteSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.Label] = snap

	hist := s.histograms[snap.Label]
	for i, bucket := range histogramBuckets {
		if snap.Score.GreaterThan(bucket) {
			hist[i]++
		}
	}
	s.histograms[snap.Label] = hist

	if snap.Score.GreaterThan(s.highest[snap.Label]) {
		s.highest[snap.Label] = snap.Score
	}
}

// Snapshot returns the latest published snapshot for a route.
func (s *Stats) Snapshot(label string) (RouteSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[label]
	return snap, ok
}

// Histogram returns the four bucket counters {>0.4%, >0.5%, >0.75%, >1%} for a route.
func (s *Stats) Histogram(label string) [4]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.histograms[label]
}

// HighestSeen returns the highest score ever recorded for a route.
func (s *Stats) HighestSeen(label string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highest[label]
}

// All returns every currently published snapshot, for the dashboard's
// /status view.
func (s *Stats) All() []RouteSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RouteSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	return out
}
