package websocket

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MessageLimiter limits the messages a single client may send.
type MessageLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	burst   int
	every   rate.Limit
}

// NewMessageLimiter allows bursts of burst messages, refilled over interval.
func NewMessageLimiter(burst int, interval time.Duration) *MessageLimiter {
	every := rate.Every(interval / time.Duration(burst))
	return &MessageLimiter{
		limiter: rate.NewLimiter(every, burst),
		burst:   burst,
		every:   every,
	}
}

// Allow implements RateLimiter.
func (l *MessageLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiter.Allow()
}

// Reset implements RateLimiter.
func (l *MessageLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = rate.NewLimiter(l.every, l.burst)
}
