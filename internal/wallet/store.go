// Package wallet holds the unified balance mirror: {exchange, currency} →
// {available, reserved, total}, refreshed after every execution.
package wallet

import (
	"sync"

	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

type key struct {
	exchange string
	currency string
}

// Store is the thread-safe balance mirror for every (exchange, currency).
type Store struct {
	mu       sync.RWMutex
	balances map[key]types.WalletEntry
}

// NewStore creates an empty balance store.
func NewStore() *Store {
	return &Store{balances: make(map[key]types.WalletEntry)}
}

// Set replaces the balance for (exchange, currency), e.g. from a getBalances reply.
func (s *Store) Set(exchange, currency string, entry types.WalletEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[key{exchange, currency}] = entry
}

// Get returns the balance for (exchange, currency); zero value if unknown.
func (s *Store) Get(exchange, currency string) types.WalletEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[key{exchange, currency}]
}

// Available is a convenience accessor returning just the available amount.
func (s *Store) Available(exchange, currency string) decimal.Decimal {
	return s.Get(exchange, currency).Available
}

// Snapshot returns a shallow copy of the whole store, keyed by
// "exchange:currency", for the read-only dashboard and tests.
func (s *Store) Snapshot() map[string]types.WalletEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.WalletEntry, len(s.balances))
	for k, v := range s.balances {
		out[k.exchange+":"+k.currency] = v
	}
	return out
}
