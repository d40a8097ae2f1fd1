package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"courier/pkg/metrics"
)

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// pool holds one token bucket per client IP. Buckets idle past MaxAge are
// dropped by a background cleanup loop.
type pool struct {
	mu       sync.Mutex
	limiters map[string]*entry
	cfg      RateLimitConfig
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newPool(cfg RateLimitConfig) *pool {
	def := DefaultConfig()
	if cfg.RPS <= 0 {
		cfg.RPS = def.RPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}

	p := &pool{limiters: make(map[string]*entry), cfg: cfg}
	go p.cleanupLoop()
	return p
}

func (p *pool) get(clientIP string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.limiters[clientIP]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(p.cfg.RPS), p.cfg.Burst)}
		p.limiters[clientIP] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

func (p *pool) cleanupLoop() {
	ticker := time.NewTicker(p.cfg.CleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-p.cfg.MaxAge)
		p.mu.Lock()
		for ip, e := range p.limiters {
			if e.lastSeen.Before(cutoff) {
				delete(p.limiters, ip)
			}
		}
		p.mu.Unlock()
	}
}

// RateLimitMiddleware enforces a per-client-IP request rate. Zero config
// fields fall back to defaults.
func RateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	p := newPool(cfg)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		limiter := p.get(clientIP)
		c.Header("X-RateLimit-Limit", strconv.Itoa(int(p.cfg.RPS)))

		if !limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			c.Abort()
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		remaining := limiter.Burst() - int(limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}
