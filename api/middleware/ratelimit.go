package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/groupxyz/media-relay/internal/domain"
	"github.com/groupxyz/media-relay/internal/metrics"
)

const rateLimitMessage = "Too many requests, please try again later."

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. A bucket holds Requests tokens
// and refills completely over Window.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

// NewRateLimiter creates a limiter from config. Buckets idle for longer than a window are dropped.
func NewRateLimiter(config domain.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Every(config.Window / time.Duration(config.Requests)),
		burst:   config.Requests,
		idle:    config.Window,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow takes a token from ip's bucket
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idle {
			delete(l.clients, ip)
		}
	}
}

// Middleware rejects clients that ran out of tokens with 429
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": rateLimitMessage})
			return
		}
		c.Next()
	}
}
