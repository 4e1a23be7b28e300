// Package ratelimiter throttles HTTP clients with per-key token buckets.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket: tokens are added at a constant rate up to a
// burst capacity and every request consumes one.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained with bursts
// of up to burst requests. A zero rate means unlimited.
func New(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow consumes a token if one is available.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of tokens currently in the bucket.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// PerClient keeps one RateLimiter per key (a client IP address), created on
// first use and forgotten after idleTTL without requests.
type PerClient struct {
	requestsPerSecond float64
	burst             int
	idleTTL           time.Duration
	now               func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// NewPerClient creates a PerClient limiter. idleTTL defaults to 10 minutes.
func NewPerClient(requestsPerSecond float64, burst int, idleTTL time.Duration) *PerClient {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &PerClient{
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
		idleTTL:           idleTTL,
		now:               time.Now,
		clients:           make(map[string]*client),
		lastSweep:         time.Now(),
	}
}

// Enabled reports whether the limiter restricts anything.
func (p *PerClient) Enabled() bool {
	return p.requestsPerSecond > 0
}

// Allow consumes a token from key's bucket if one is available.
func (p *PerClient) Allow(key string) bool {
	if !p.Enabled() {
		return true
	}

	now := p.now()

	p.mu.Lock()
	if now.Sub(p.lastSweep) >= p.idleTTL {
		p.sweep(now)
	}
	c, ok := p.clients[key]
	if !ok {
		c = &client{limiter: New(p.requestsPerSecond, p.burst)}
		p.clients[key] = c
	}
	c.lastSeen = now
	p.mu.Unlock()

	return c.limiter.Allow()
}

// Len returns the number of tracked clients.
func (p *PerClient) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// sweep drops idle clients. Must hold p.mu.
func (p *PerClient) sweep(now time.Time) {
	for key, c := range p.clients {
		if now.Sub(c.lastSeen) >= p.idleTTL {
			delete(p.clients, key)
		}
	}
	p.lastSweep = now
}
