// Package admission guards write endpoints with a per-address token bucket
// and a request body cap.
package admission

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config sizes the per-address buckets.
type Config struct {
	RatePerSecond float64
	Burst         int
	IdleTTL       time.Duration
	SweepInterval time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client address.
type Limiter struct {
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLimiter validates cfg and returns an empty Limiter.
func NewLimiter(cfg Config) (*Limiter, error) {
	if cfg.RatePerSecond <= 0 {
		return nil, errors.New("rate per second must be positive")
	}
	if cfg.Burst < 1 {
		return nil, errors.New("burst must be at least 1")
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Limiter{
		limit:    rate.Limit(cfg.RatePerSecond),
		burst:    cfg.Burst,
		idleTTL:  cfg.IdleTTL,
		interval: cfg.SweepInterval,
		now:      cfg.Now,
		buckets:  make(map[string]*bucket),
	}, nil
}

// Allow takes one token from addr's bucket. When the bucket is empty it
// returns false and how long until the next token is available.
func (l *Limiter) Allow(addr string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[addr]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[addr] = b
	}
	b.lastSeen = now
	lim := b.lim
	l.mu.Unlock()

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep drops buckets idle for longer than the configured TTL and reports
// how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for addr, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, addr)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked addresses.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run sweeps idle buckets on every tick until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
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
