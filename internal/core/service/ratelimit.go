package service

import (
	"golang.org/x/time/rate"

	"github.com/yndnr/corslight-go/pkg/cmap"
)

// RateLimiterRegistry keeps one token bucket per origin hostname. It is
// shared by every dispatcher of a server so that opening more connections
// does not raise an origin's budget.
type RateLimiterRegistry struct {
	limit    rate.Limit
	burst    int
	limiters *cmap.Map[string, *rate.Limiter]
}

// NewRateLimiterRegistry allows perSecond requests per origin with the
// given burst. It returns nil, meaning unlimited, when perSecond <= 0.
func NewRateLimiterRegistry(perSecond float64, burst int) *RateLimiterRegistry {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiterRegistry{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: cmap.New[string, *rate.Limiter](),
	}
}

// Allow reports whether hostname may issue one more request now.
// A nil registry allows everything.
func (r *RateLimiterRegistry) Allow(hostname string) bool {
	if r == nil {
		return true
	}
	return r.GetOrCreate(hostname).Allow()
}

// GetOrCreate returns the limiter of hostname, creating it on first use.
func (r *RateLimiterRegistry) GetOrCreate(hostname string) *rate.Limiter {
	return r.limiters.GetOrCompute(hostname, func() *rate.Limiter {
		return rate.NewLimiter(r.limit, r.burst)
	})
}

// Delete removes the limiter of hostname.
func (r *RateLimiterRegistry) Delete(hostname string) {
	if r == nil {
		return
	}
	r.limiters.Delete(hostname)
}

// Len returns the number of tracked origins.
func (r *RateLimiterRegistry) Len() int {
	if r == nil {
		return 0
	}
	return r.limiters.Count()
}
