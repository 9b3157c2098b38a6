// Token bucket rate limiting per client IP, adapted to plain net/http.

package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleBucketAge is how long an idle client's bucket survives before the
// next sweep drops it.
const staleBucketAge = 10 * time.Minute

type limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int

	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newLimiter allows requests tokens per minute per key with the given burst.
func newLimiter(requestsPerMinute, burst int) *limiter {
	return &limiter{
		buckets:   make(map[string]*bucket),
		rate:      rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

// allow reports whether a request with the given key may proceed.
func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > staleBucketAge {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > staleBucketAge {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// withRateLimit rejects clients that exceed the per-IP budget. A nil limiter
// disables the middleware.
func withRateLimit(l *limiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !l.allow(host) {
			respondError(w, http.StatusTooManyRequests, "Too many requests", codeRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
