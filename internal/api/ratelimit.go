package api

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/mudamudi/mmdesk/internal/config"
	"github.com/mudamudi/mmdesk/internal/metrics"
)

// DefaultRateLimit applies to endpoints without an explicit limit.
//
//nolint:gochecknoglobals // Fixed default, never mutated
var DefaultRateLimit = config.RateLimit{PerSecond: 5, Burst: 5}

// RateLimiter keeps one token bucket per API endpoint. The buckets are built
// up front for every known endpoint and never change afterwards.
type RateLimiter struct {
	buckets map[metrics.Endpoint]*rate.Limiter
}

// NewRateLimiter builds a bucket for each endpoint from limits, using
// DefaultRateLimit for endpoints it does not name or names with an
// unusable limit.
func NewRateLimiter(limits map[metrics.Endpoint]config.RateLimit) *RateLimiter {
	r := &RateLimiter{buckets: make(map[metrics.Endpoint]*rate.Limiter, len(metrics.Endpoints()))}
	for _, e := range metrics.Endpoints() {
		l, ok := limits[e]
		if !ok || l.PerSecond <= 0 || l.Burst < 1 {
			l = DefaultRateLimit
		}
		r.buckets[e] = rate.NewLimiter(rate.Limit(l.PerSecond), l.Burst)
	}
	return r
}

// Limit reports the limit in force for endpoint.
func (r *RateLimiter) Limit(endpoint metrics.Endpoint) (config.RateLimit, bool) {
	b, ok := r.buckets[endpoint]
	if !ok {
		return config.RateLimit{}, false
	}
	return config.RateLimit{PerSecond: float64(b.Limit()), Burst: b.Burst()}, true
}

// Allow reports whether a request to endpoint may proceed now.
func (r *RateLimiter) Allow(endpoint metrics.Endpoint) bool {
	b, ok := r.buckets[endpoint]
	return ok && b.Allow()
}

// Wait blocks until a request to endpoint may proceed. When the wait cannot
// finish before ctx's deadline it fails at once with an error matching
// context.DeadlineExceeded.
func (r *RateLimiter) Wait(ctx context.Context, endpoint metrics.Endpoint) error {
	b, ok := r.buckets[endpoint]
	if !ok {
		return fmt.Errorf("no rate limit for endpoint %q", endpoint)
	}
	if err := b.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if _, hasDeadline := ctx.Deadline(); hasDeadline {
			return fmt.Errorf("%s %w: %v", endpoint, context.DeadlineExceeded, err)
		}
		return err
	}
	return nil
}
