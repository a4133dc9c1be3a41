package widget

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorLimiter throttles widget events per visitor. The key is the visitor
// id only, not visitor:session, so opening tabs does not multiply the budget.
type visitorLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitorBucket
	limit    rate.Limit
	burst    int
	window   time.Duration
	now      func() time.Time
}

type visitorBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newVisitorLimiter allows requests events per window with a burst of requests.
func newVisitorLimiter(requests int, window time.Duration) *visitorLimiter {
	if requests <= 0 {
		requests = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &visitorLimiter{
		visitors: make(map[string]*visitorBucket),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		window:   window,
		now:      time.Now,
	}
}

// reserve takes one token for key. When none is available it reports how
// long the caller should wait before retrying.
func (l *visitorLimiter) reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.visitors[key]
	if !ok {
		b = &visitorBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, l.window
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// evict drops buckets idle for a full window; they would be full again anyway.
func (l *visitorLimiter) evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for key, b := range l.visitors {
		if b.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			n++
		}
	}
	return n
}

func (l *visitorLimiter) startEviction(done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(l.window)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				l.evict()
			}
		}
	}()
}
