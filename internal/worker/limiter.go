package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter implements per-series write throttling for timeline appends
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a write limiter with a shared default rate
func NewLimiter(writesPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(writesPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until the given series has write budget
func (l *Limiter) Wait(ctx context.Context, series string) error {
	return l.getLimiter(series).Wait(ctx)
}

// Allow checks if a write is allowed without waiting
func (l *Limiter) Allow(series string) bool {
	return l.getLimiter(series).Allow()
}

// getLimiter returns the rate limiter for a series
func (l *Limiter) getLimiter(series string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[series]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[series]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[series] = limiter

	return limiter
}

// SetSeriesRate sets a custom write rate for a specific series
func (l *Limiter) SetSeriesRate(series string, writesPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[series] = rate.NewLimiter(rate.Limit(writesPerSecond), burst)
}

// WaitWithDelay waits for write budget and adds an additional delay
func (l *Limiter) WaitWithDelay(ctx context.Context, series string, additionalDelay time.Duration) error {
	if err := l.Wait(ctx, series); err != nil {
		return err
	}

	if additionalDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(additionalDelay):
		}
	}

	return nil
}
