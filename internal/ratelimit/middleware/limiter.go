package middleware

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"storefront/internal/ratelimit/metrics"
	"storefront/internal/ratelimit/models"
)

// IPLimiter keeps one token bucket per client key. Buckets idle for longer
// than idleTTL are dropped by Sweep.
type IPLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type LimiterOption func(*IPLimiter)

// WithClock overrides the limiter's time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *IPLimiter) {
		l.now = now
	}
}

func WithMetrics(m *metrics.Metrics) LimiterOption {
	return func(l *IPLimiter) {
		l.metrics = m
	}
}

// NewIPLimiter allows rps requests per second per key with the given burst.
func NewIPLimiter(rps float64, burst int, idleTTL time.Duration, opts ...LimiterOption) *IPLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &IPLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token for key.
func (l *IPLimiter) Allow(key string) *models.RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
		l.metrics.SetTrackedKeys(len(l.buckets))
	}
	b.lastSeen = now

	res := &models.RateLimitResult{Limit: l.burst}
	r := b.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if !r.OK() || delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = int(math.Ceil(delay.Seconds()))
		if res.RetryAfter < 1 {
			res.RetryAfter = 1
		}
		res.ResetAt = now.Add(time.Duration(res.RetryAfter) * time.Second)
		return res
	}

	res.Allowed = true
	res.Remaining = int(b.limiter.TokensAt(now))
	res.ResetAt = now.Add(l.refillTime(res.Remaining))
	return res
}

// refillTime is how long until the bucket is full again.
func (l *IPLimiter) refillTime(remaining int) time.Duration {
	if l.limit <= 0 || l.limit == rate.Inf {
		return 0
	}
	missing := float64(l.burst - remaining)
	return time.Duration(missing / float64(l.limit) * float64(time.Second))
}

// Sweep drops idle buckets and returns how many were removed.
func (l *IPLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	l.metrics.SetTrackedKeys(len(l.buckets))
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *IPLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
