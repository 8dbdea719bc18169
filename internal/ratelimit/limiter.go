package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different upstream services we call
type API string

const (
	// APIRPC represents the Solana node JSON-RPC endpoint
	APIRPC API = "rpc"
	// APIDexScreener represents the DexScreener token pairs API
	APIDexScreener API = "dexscreener"
	// APIJupiter represents the Jupiter token list and price APIs
	APIJupiter API = "jupiter"
	// APISolscan represents the Solscan public API
	APISolscan API = "solscan"
)

// Limiter manages rate limits for different APIs
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter with one token bucket per API.
// A limit of zero or less leaves that API unlimited.
func New(limits map[API]float64) *Limiter {
	l := &Limiter{
		limiters: make(map[API]*rate.Limiter, len(limits)),
	}
	for api, perSecond := range limits {
		l.Set(api, perSecond)
	}
	return l
}

// Unlimited returns a limiter that never blocks. Used in tests.
func Unlimited() *Limiter {
	return &Limiter{limiters: make(map[API]*rate.Limiter)}
}

// Set replaces the limit for an API. Burst is always 1 so requests are spread
// evenly instead of fired in bursts at the start of each second.
func (l *Limiter) Set(api API, perSecond float64) {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	l.mu.Lock()
	l.limiters[api] = rate.NewLimiter(limit, 1)
	l.mu.Unlock()
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	if l == nil {
		return ctx.Err()
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return ctx.Err()
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now. A true
// result consumes the token, so the caller must not Wait as well.
func (l *Limiter) Allow(api API) bool {
	if l == nil {
		return true
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		return true
	}

	return limiter.Allow()
}
