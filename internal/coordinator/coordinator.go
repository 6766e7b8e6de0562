package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"arby/internal/exchange"
	"arby/internal/marketinfo"
	"arby/pkg/types"
)

// Coordinator runs two workers concurrently against a pair of
// TradeDescriptors handed in per opportunity, mirroring the source's
// three-signal (s0, s1, s2) rendezvous: s0 releases both workers, each
// worker signals its own completion channel, and Execute waits on both
// with a timeout appropriate to the route's leg count.
type Coordinator struct {
	worker1, worker2 *Worker
	logger           *slog.Logger
	mu               sync.Mutex // serializes overlapping Execute calls
}

// New creates a coordinator with two workers sharing the given adapters.
func New(adapters map[string]exchange.Adapter, marketInfo *marketinfo.Cache, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		worker1: NewWorker(adapters, marketInfo, logger.With("worker", 1)),
		worker2: NewWorker(adapters, marketInfo, logger.With("worker", 2)),
		logger:  logger.With("component", "coordinator"),
	}
}

// Execute runs descriptor a on worker 1 and b on worker 2 concurrently,
// waiting up to timeout for both to finish. It returns every filled leg
// from both workers, and false if either worker timed out.
func (c *Coordinator) Execute(ctx context.Context, a, b types.TradeDescriptor, timeout time.Duration) ([]types.OrderLeg, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		legs []types.OrderLeg
	}
	done1 := make(chan result, 1)
	done2 := make(chan result, 1)

	go func() { done1 <- result{legs: c.worker1.Run(runCtx, a)} }()
	go func() { done2 <- result{legs: c.worker2.Run(runCtx, b)} }()

	var legs []types.OrderLeg
	ok := true

	select {
	case r := <-done1:
		legs = append(legs, r.legs...)
	case <-runCtx.Done():
		ok = false
		c.logger.Error("rendezvous timed out waiting for worker 1", "exchange", a.Exchange, "market", a.Market.ID(), "timeout", timeout)
	}

	select {
	case r := <-done2:
		legs = append(legs, r.legs...)
	case <-runCtx.Done():
		ok = false
		c.logger.Error("rendezvous timed out waiting for worker 2", "exchange", b.Exchange, "market", b.Market.ID(), "timeout", timeout)
	}

	return legs, ok
}
