package httpapi

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter keyed by client IP. Buckets refill at
// ratePerMinute and cap at burst; an idle bucket is dropped after an hour so
// the map does not grow without bound.
type RateLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	ratePerMinute float64
	burst         float64
	lastSweep     time.Time
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

func NewRateLimiter(ratePerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		buckets:       make(map[string]*bucket),
		ratePerMinute: float64(ratePerMinute),
		burst:         float64(burst),
		lastSweep:     time.Now(),
	}
}

func (rl *RateLimiter) allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > time.Hour {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) > time.Hour {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.burst}
		rl.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Minutes()
		b.tokens += elapsed * rl.ratePerMinute
		if b.tokens > rl.burst {
			b.tokens = rl.burst
		}
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
