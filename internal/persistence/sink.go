// Package persistence defines the narrow append-only sink interface the
// scanner writes through, plus a file-backed default
// implementation. The relational schema this stands in for is an external
// collaborator out of core scope; this package only needs to append
// records durably.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arby/pkg/types"
)

// Sink is the append-only event log the engine writes opportunities,
// order legs, and balance snapshots through.
type Sink interface {
	RecordOpportunity(types.Opportunity) error
	RecordLeg(orderID string, leg types.OrderLeg) error
	RecordBalances(ts time.Time, totals map[string]decimal.Decimal) error
	Close() error
}

// FileSink appends newline-delimited JSON records to one file per record
// kind in a designated directory. Every write is flushed and its handle
// closed immediately; there is no in-process buffering to lose on crash.
type FileSink struct {
	dir string
	mu  sync.Mutex
}

// Open creates (or reuses) a directory of append-only log files.
func Open(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

func (s *FileSink) Close() error { return nil }

func (s *FileSink) appendLine(filename string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", filename, err)
	}
	data = append(data, '\n')

	path := filepath.Join(s.dir, filename)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append %s: %w", filename, err)
	}
	return nil
}

// RecordOpportunity appends a detected (and possibly executed) opportunity.
func (s *FileSink) RecordOpportunity(o types.Opportunity) error {
	return s.appendLine("opportunities.jsonl", o)
}

type legRecord struct {
	OrderID string `json:"order_id"`
	types.OrderLeg
}

// RecordLeg appends one filled order leg, tagged with orderID as given. The
// scanner passes the route label, so legs from separate executions of the
// same route carry the same tag.
func (s *FileSink) RecordLeg(orderID string, leg types.OrderLeg) error {
	return s.appendLine("order_legs.jsonl", legRecord{OrderID: orderID, OrderLeg: leg})
}

type balanceRecord struct {
	Ts     time.Time                  `json:"ts"`
	Totals map[string]decimal.Decimal `json:"totals"`
}

// RecordBalances appends a snapshot of per-currency balance totals exactly as
// the caller passes them; it does no summing of its own.
func (s *FileSink) RecordBalances(ts time.Time, totals map[string]decimal.Decimal) error {
	return s.appendLine("balances.jsonl", balanceRecord{Ts: ts, Totals: totals})
}
