// Package middleware holds the HTTP middleware of the preview server.
package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the number of per-IP limiters kept in memory.
const maxTrackedClients = 1024

// RateLimit represents a rate limiter configuration.
type RateLimit struct {
	RequestsPerMinute int
	BurstLimit        int
}

// RateLimiter implements a token bucket rate limiter per IP address. The
// least recently seen clients are forgotten once maxTrackedClients is reached.
type RateLimiter struct {
	config  RateLimit
	buckets *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimit) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 600
	}
	if config.BurstLimit <= 0 {
		config.BurstLimit = config.RequestsPerMinute / 10
		if config.BurstLimit == 0 {
			config.BurstLimit = 1
		}
	}

	// lru.New only fails for a non-positive size.
	buckets, _ := lru.New[string, *rate.Limiter](maxTrackedClients)

	return &RateLimiter{config: config, buckets: buckets}
}

// RateLimit returns a middleware that implements rate limiting per IP.
func (rl *RateLimiter) RateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(ClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Allow consumes a token for ip.
func (rl *RateLimiter) Allow(ip string) bool {
	limiter, ok := rl.buckets.Get(ip)
	if !ok {
		every := time.Minute / time.Duration(rl.config.RequestsPerMinute)
		limiter = rate.NewLimiter(rate.Every(every), rl.config.BurstLimit)
		if existing, found, _ := rl.buckets.PeekOrAdd(ip, limiter); found {
			limiter = existing
		}
	}

	return limiter.Allow()
}

// ClientIP returns the host part of the request's remote address. Forwarded
// headers are not trusted.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}

	return host
}
