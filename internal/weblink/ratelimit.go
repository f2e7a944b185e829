package weblink

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies three tiers before any outbound fetch: a global cap
// protecting this server, a per-domain cap derived from the target's crawl
// delay, and a per-owner cap for fair usage across blocks.
type RateLimiter struct {
	globalLimiter     *rate.Limiter
	perDomainLimiters sync.Map // map[string]*rate.Limiter
	perOwnerLimiters  sync.Map // map[string]*rate.Limiter
}

// NewRateLimiter creates the limiter with the given global rate (req/s).
func NewRateLimiter(globalRate float64) *RateLimiter {
	return &RateLimiter{
		globalLimiter: rate.NewLimiter(rate.Limit(globalRate), int(globalRate*2)),
	}
}

// Wait blocks until all three tiers admit one request, honoring the host's
// crawl delay when its limiter is first created.
func (rl *RateLimiter) Wait(ctx context.Context, ownerID, domain string, crawlDelay time.Duration) error {
	if err := rl.globalLimiter.Wait(ctx); err != nil {
		return err
	}
	if err := rl.domainLimiter(domain, crawlDelay).Wait(ctx); err != nil {
		return err
	}
	return rl.ownerLimiter(ownerID).Wait(ctx)
}

func (rl *RateLimiter) domainLimiter(domain string, crawlDelay time.Duration) *rate.Limiter {
	if limiter, ok := rl.perDomainLimiters.Load(domain); ok {
		return limiter.(*rate.Limiter)
	}

	requestsPerSecond := 2.0
	if crawlDelay > 0 {
		requestsPerSecond = 1.0 / crawlDelay.Seconds()
	}
	if requestsPerSecond > 5.0 {
		requestsPerSecond = 5.0
	}
	if requestsPerSecond < 0.2 {
		requestsPerSecond = 0.2
	}

	actual, _ := rl.perDomainLimiters.LoadOrStore(domain, rate.NewLimiter(rate.Limit(requestsPerSecond), 1))
	return actual.(*rate.Limiter)
}

func (rl *RateLimiter) ownerLimiter(ownerID string) *rate.Limiter {
	if limiter, ok := rl.perOwnerLimiters.Load(ownerID); ok {
		return limiter.(*rate.Limiter)
	}
	actual, _ := rl.perOwnerLimiters.LoadOrStore(ownerID, rate.NewLimiter(rate.Limit(5.0), 10))
	return actual.(*rate.Limiter)
}
