// ratelimit.go implements token-bucket rate limiting for Hyperliquid's HTTP
// and WebSocket endpoints. Hyperliquid publishes a single combined limit —
// by default 20 requests per second shared across every /info, /exchange,
// and WS subscribe frame — so one bucket covers all of it.
package transport

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a continuous-refill token bucket: tokens accrue smoothly at
// rate per second rather than resetting in discrete windows, so a caller
// never has to wait out a whole window after a burst.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64   // fractional tokens currently available
	capacity float64   // burst ceiling tokens refill toward
	rate     float64   // refill rate, tokens per second
	lastTime time.Time // when tokens was last topped up
}

// NewTokenBucket creates a bucket with the given burst capacity and
// steady-state refill rate (tokens per second).
func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{
		tokens:   capacity,
		capacity: capacity,
		rate:     ratePerSecond,
		lastTime: time.Now(),
	}
}

// Wait blocks the caller until a token frees up, topping off the bucket
// based on elapsed time before checking, or returns early if ctx ends first.
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
			// loop back around and re-check; another waiter may have
			// consumed the token that just became available
		}
	}
}
