package reminders

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of sends allowed per second.
	Rate float64
	// Burst is the maximum number of sends at once.
	Burst int
	// JitterMin and JitterMax bound the random delay in milliseconds.
	JitterMin int
	JitterMax int
}

// DefaultRateLimiterConfig stays under Telegram's global 30 msg/s limit.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:      20.0,
		Burst:     30,
		JitterMin: 50,
		JitterMax: 150,
	}
}

// RateLimiter is a token bucket with jitter in front of it.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
	mu      sync.Mutex
	rng     *rand.Rand
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = DefaultRateLimiterConfig().Rate
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if jitter := r.jitter(); jitter > 0 {
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.limiter.Wait(ctx)
}

// TryAcquire takes a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	return r.limiter.Allow()
}

func (r *RateLimiter) jitter() time.Duration {
	if r.config.JitterMax <= r.config.JitterMin {
		return time.Duration(r.config.JitterMin) * time.Millisecond
	}

	r.mu.Lock()
	ms := r.config.JitterMin + r.rng.Intn(r.config.JitterMax-r.config.JitterMin)
	r.mu.Unlock()

	return time.Duration(ms) * time.Millisecond
}
