// Package book holds the unified order-book mirror: {exchange, market} →
// {bids, asks, lastUpdate}. Writers are the per-venue WebSocket adapters;
// readers are the scanner. A single exclusive lock around the whole store
// is adequate because the scanner takes one brief critical section per tick.
package book

import (
	"sort"
	"sync"
	"time"

	"arby/pkg/types"
)

type key struct {
	exchange string
	market   string
}

// Store is the thread-safe order-book mirror for every (exchange, market).
type Store struct {
	mu     sync.Mutex
	topN   int
	books  map[key]types.OrderBookEntry
}

// NewStore creates a book store truncating each side to topN levels (>= 10).
func NewStore(topN int) *Store {
	if topN < 10 {
		topN = 10
	}
	return &Store{
		topN:  topN,
		books: make(map[key]types.OrderBookEntry),
	}
}

// Snapshot replaces both sides of a book wholesale. Bids are sorted
// descending by price, asks ascending, each truncated to topN levels.
func (s *Store) Snapshot(exchange, market string, bids, asks []types.PriceLevel) {
	bids = sortDesc(bids)
	asks = sortAsc(asks)
	bids = truncate(bids, s.topN)
	asks = truncate(asks, s.topN)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[key{exchange, market}] = types.OrderBookEntry{
		Bids:       bids,
		Asks:       asks,
		LastUpdate: time.Now(),
	}
}

// Update applies an incremental change to one side of a book: for each
// (price, qty) in the update, any existing level at that price is removed,
// then the new level is inserted if qty > 0. The side is re-sorted and
// truncated to topN. isBid selects which side the updates apply to.
func (s *Store) Update(exchange, market string, isBid bool, levels []types.PriceLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{exchange, market}
	entry := s.books[k]

	if isBid {
		entry.Bids = applyLevels(entry.Bids, levels, true)
		entry.Bids = truncate(entry.Bids, s.topN)
	} else {
		entry.Asks = applyLevels(entry.Asks, levels, false)
		entry.Asks = truncate(entry.Asks, s.topN)
	}
	entry.LastUpdate = time.Now()
	s.books[k] = entry
}

// Get returns a copy of the current book for (exchange, market).
func (s *Store) Get(exchange, market string) (types.OrderBookEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.books[key{exchange, market}]
	return entry, ok
}

// GetMany reads several books under a single lock acquisition, giving the
// scanner a consistent snapshot across every book a route's score touches
// within one tick.
func (s *Store) GetMany(keys [][2]string) map[[2]string]types.OrderBookEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[[2]string]types.OrderBookEntry, len(keys))
	for _, kk := range keys {
		if entry, ok := s.books[key{kk[0], kk[1]}]; ok {
			result[kk] = entry
		}
	}
	return result
}

func applyLevels(existing []types.PriceLevel, updates []types.PriceLevel, bid bool) []types.PriceLevel {
	result := make([]types.PriceLevel, 0, len(existing)+len(updates))
	for _, lvl := range existing {
		keep := true
		for _, u := range updates {
			if lvl.Price.Equal(u.Price) {
				keep = false
				break
			}
		}
		if keep {
			result = append(result, lvl)
		}
	}
	for _, u := range updates {
		if u.Qty.IsPositive() {
			result = append(result, u)
		}
	}
	if bid {
		return sortDesc(result)
	}
	return sortAsc(result)
}

func sortDesc(levels []types.PriceLevel) []types.PriceLevel {
	out := append([]types.PriceLevel(nil), levels...)
	sort.Slice(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	return out
}

func sortAsc(levels []types.PriceLevel) []types.PriceLevel {
	out := append([]types.PriceLevel(nil), levels...)
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out
}

func truncate(levels []types.PriceLevel, n int) []types.PriceLevel {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}
