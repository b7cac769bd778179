package reddit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate limit configuration for the Reddit API.
// OAuth clients are allowed 60 requests per minute; we budget 55 to leave
// headroom for the token endpoint.
const (
	// RequestBudget is the number of admissions per window.
	RequestBudget = 55
	// BudgetWindow is the replenishment window.
	BudgetWindow = time.Minute
)

// RateLimiter provides rate limiting for Reddit API requests. Admissions are
// paced evenly across the window so no sliding window ever sees more than
// the budget, with optional backoff for 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a rate limiter with the default Reddit budget.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithBudget(RequestBudget, BudgetWindow)
}

// NewRateLimiterWithBudget creates a rate limiter admitting budget requests
// per window.
func NewRateLimiterWithBudget(budget int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(window/time.Duration(budget)), 1),
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError. The wait
// is bounded by the window size plus any recorded backoff.
func (r *RateLimiter) Wait(ctx context.Context) error {
	// First, check for backoff from previous rate limit errors
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	// Then wait for the token bucket
	return r.limiter.Wait(ctx)
}

// RecordRateLimitError records a rate limit error and sets a backoff period.
// Call this when receiving a 429 response. The retryAfterSeconds parameter
// should come from the Retry-After header.
func (r *RateLimiter) RecordRateLimitError(retryAfterSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if retryAfterSeconds <= 0 {
		// Default backoff: 60 seconds
		retryAfterSeconds = 60
	}

	r.retryAt = time.Now().Add(time.Duration(retryAfterSeconds) * time.Second)
}

// Allow checks if a request can be made immediately without blocking.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}

	return r.limiter.Allow()
}
