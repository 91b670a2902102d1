package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mhsanaei/3x-ui-usage/config"
	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/web/entity"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// RateLimitConfig configures rate limiting
type RateLimitConfig struct {
	Limit     config.RateLimit
	KeyFunc   func(c *gin.Context) string
	SkipPaths []string // Paths to skip rate limiting
}

// DefaultRateLimitConfig limits every client address to limit requests per window.
func DefaultRateLimitConfig(limit config.RateLimit) RateLimitConfig {
	return RateLimitConfig{
		Limit: limit,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

func (cfg RateLimitConfig) shouldSkip(path string) bool {
	for _, skipPath := range cfg.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

type window struct {
	count int
	reset time.Time
}

// RateLimiter counts requests per key in fixed windows of Limit.Period.
type RateLimiter struct {
	limit config.RateLimit
	store *cache.Cache
	mu    sync.Mutex
	now   func() time.Time
}

func NewRateLimiter(limit config.RateLimit) *RateLimiter {
	return &RateLimiter{
		limit: limit,
		store: cache.New(limit.Period, 2*limit.Period),
		now:   time.Now,
	}
}

// Allow records a request for key and reports whether it fits in the current window,
// how many requests remain and when the window resets.
func (l *RateLimiter) Allow(key string) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var w *window
	if v, found := l.store.Get(key); found {
		w = v.(*window)
	}
	if w == nil || !now.Before(w.reset) {
		w = &window{reset: now.Add(l.limit.Period)}
		l.store.Set(key, w, l.limit.Period)
	}

	if w.count >= l.limit.Count {
		return false, 0, w.reset
	}
	w.count++
	return true, l.limit.Count - w.count, w.reset
}

// RateLimitMiddleware creates rate limiting middleware
func RateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := NewRateLimiter(cfg.Limit)
	return rateLimitHandler(cfg, limiter)
}

func rateLimitHandler(cfg RateLimitConfig, limiter *RateLimiter) gin.HandlerFunc {
	limitHeader := strconv.Itoa(cfg.Limit.Count)
	return func(c *gin.Context) {
		if cfg.shouldSkip(c.Request.URL.Path) {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		allowed, remaining, reset := limiter.Allow(key)

		c.Header("X-RateLimit-Limit", limitHeader)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retryAfter := int(math.Ceil(time.Until(reset).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			logger.Warningf("Rate limit exceeded for %s on %s", key, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, entity.ErrorMsg{
				Error:  "Rate limit exceeded",
				Detail: "Rate limit exceeded: " + cfg.Limit.String() + ". Please try again later.",
			})
			return
		}

		c.Next()
	}
}
