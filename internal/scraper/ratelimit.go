package scraper

import (
	"context"
	"sync"
	"time"
)

// RateLimiter caps the total request rate of a Scraper across all domains.
// Tokens are added every 1/rps seconds up to a burst of rps.
type RateLimiter struct {
	tokens   chan struct{}
	interval time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewRateLimiter creates a limiter for rps requests per second, clamped to
// at least 1. The bucket starts full.
func NewRateLimiter(rps int) *RateLimiter {
	if rps < 1 {
		rps = 1
	}
	rl := &RateLimiter{
		tokens:   make(chan struct{}, rps),
		interval: time.Second / time.Duration(rps),
		done:     make(chan struct{}),
	}
	for i := 0; i < rps; i++ {
		rl.tokens <- struct{}{}
	}

	go rl.refill()

	return rl
}

func (rl *RateLimiter) refill() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			select {
			case rl.tokens <- struct{}{}:
			default: // full
			}
		}
	}
}

// Wait takes a token, blocking until one is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.tokens:
		return nil
	}
}

// Close stops refilling. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// DomainRateLimiter spaces requests to the same domain at least minDelay
// apart. Requests to different domains never wait on each other.
type DomainRateLimiter struct {
	next     map[string]time.Time
	mu       sync.Mutex
	minDelay time.Duration
}

// NewDomainRateLimiter creates a new per-domain limiter
func NewDomainRateLimiter(minDelay time.Duration) *DomainRateLimiter {
	return &DomainRateLimiter{
		next:     make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait reserves the next slot for domain and sleeps until it comes up.
// A cancelled wait keeps its slot, so later callers still stay spaced out.
func (d *DomainRateLimiter) Wait(ctx context.Context, domain string) error {
	d.mu.Lock()
	now := time.Now()
	slot := now
	if next, ok := d.next[domain]; ok && next.After(now) {
		slot = next
	}
	d.next[domain] = slot.Add(d.minDelay)
	d.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
