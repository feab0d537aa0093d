package ebay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/skireal/ebay-tracker/internal/metrics"
)

// ErrDailyLimitReached is returned when the daily API quota is exhausted.
var ErrDailyLimitReached = errors.New("daily API limit reached")

const quotaWindow = 24 * time.Hour

// RateLimiter bounds outgoing eBay API calls. A token bucket enforces the
// per-second rate; above it sits a daily quota counted over a rolling
// window that opens at the first call and lasts 24 hours. Usage is
// published to the ebay_daily_usage gauge, and every rejected call
// increments ebay_daily_limit_hits_total.
type RateLimiter struct {
	bucket *rate.Limiter

	mu         sync.Mutex
	limit      int64
	used       int64
	windowEnds time.Time // zero while no window is open
	nowFunc    func() time.Time
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterNowFunc overrides the time function for testing.
func WithRateLimiterNowFunc(f func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.nowFunc = f
	}
}

// NewRateLimiter creates a rate limiter with the given per-second rate,
// burst size, and daily quota.
func NewRateLimiter(
	perSecond float64,
	burst int,
	maxDaily int64,
	opts ...RateLimiterOption,
) *RateLimiter {
	r := &RateLimiter{
		bucket:  rate.NewLimiter(rate.Limit(perSecond), burst),
		limit:   maxDaily,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Wait blocks until the per-second limiter admits the call, or the context
// is canceled. Returns ErrDailyLimitReached once the daily quota is spent;
// the quota call is claimed before the bucket wait.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.reserve(); err != nil {
		return err
	}
	if err := r.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// reserve claims one call from the daily quota, opening a fresh window
// when none is open or the previous one has elapsed.
func (r *RateLimiter) reserve() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	if !r.windowEnds.IsZero() && now.After(r.windowEnds) {
		r.used = 0
		r.windowEnds = time.Time{}
	}

	if r.used >= r.limit {
		metrics.EbayDailyLimitHits.Inc()
		return fmt.Errorf("%w (%d/%d)", ErrDailyLimitReached, r.used, r.limit)
	}

	if r.windowEnds.IsZero() {
		r.windowEnds = now.Add(quotaWindow)
	}
	r.used++
	metrics.EbayDailyUsage.Set(float64(r.used))
	return nil
}

// Usage returns the calls claimed in the current window and the daily
// quota.
func (r *RateLimiter) Usage() (used, limit int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used, r.limit
}
