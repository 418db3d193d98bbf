package storyengine

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SubmissionLimiter rate-limits submissions per client IP address. Each IP
// gets a token bucket of size max that refills one token every window/max.
type SubmissionLimiter struct {
	mu      sync.Mutex
	clients map[string]*ipBucket
	limit   rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewSubmissionLimiter creates a SubmissionLimiter that allows max requests
// per window. Call Stop to end the background cleanup.
func NewSubmissionLimiter(max int, window time.Duration) *SubmissionLimiter {
	l := &SubmissionLimiter{
		clients: make(map[string]*ipBucket),
		limit:   rate.Every(window / time.Duration(max)),
		burst:   max,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// cleanup forgets clients idle for a full window; their buckets are full
// again by then.
func (l *SubmissionLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.prune(l.now().Add(-l.window))
		}
	}
}

func (l *SubmissionLimiter) prune(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if !c.seen.After(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// Allow reports whether ip is under the limit and, if so, takes a token.
func (l *SubmissionLimiter) Allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	c, ok := l.clients[ip]
	if !ok {
		c = &ipBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.seen = now
	l.mu.Unlock()

	return c.lim.AllowN(now, 1)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *SubmissionLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
