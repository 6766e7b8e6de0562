package exchange

import (
	"context"
	"sync"
	"time"
)

// TokenBucket rate-limits REST calls with continuous refill. Callers block
// in Wait() until a token is available or the context is cancelled.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens refilled per second
	lastTime time.Time
}

// NewTokenBucket creates a rate limiter with the given burst capacity and
// steady-state refill rate.
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// NonceSerializer enforces the minimum spacing a venue requires between
// successive private (signed) calls, and hands out strictly increasing
// nonces for venues whose signature covers one. Kraken rejects a private
// call made less than a second after the previous one, and rejects a
// non-increasing nonce outright.
type NonceSerializer struct {
	mu       sync.Mutex
	minGap   time.Duration
	lastCall time.Time
	lastNonce int64
}

// NewNonceSerializer creates a serializer enforcing minGap between private calls.
func NewNonceSerializer(minGap time.Duration) *NonceSerializer {
	return &NonceSerializer{minGap: minGap}
}

// Wait blocks, if necessary, until minGap has elapsed since the previous
// private call, then returns a nonce guaranteed to be strictly greater than
// the one returned by the previous call.
func (n *NonceSerializer) Wait(ctx context.Context) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.lastCall.IsZero() {
		elapsed := time.Since(n.lastCall)
		if elapsed < n.minGap {
			select {
			case <-time.After(n.minGap - elapsed):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	}
	n.lastCall = time.Now()

	nonce := n.lastCall.UnixMilli()
	if nonce <= n.lastNonce {
		nonce = n.lastNonce + 1
	}
	n.lastNonce = nonce
	return nonce, nil
}
