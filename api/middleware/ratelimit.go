package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a per-identity token bucket. Idle limiters are
// evicted after an hour.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*limiterEntry)
	)

	go func() {
		for range time.Tick(5 * time.Minute) {
			mu.Lock()
			for id, e := range limiters {
				if time.Since(e.lastSeen) > time.Hour {
					delete(limiters, id)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		id := Identity(c)

		mu.Lock()
		e, ok := limiters[id]
		if !ok {
			e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			limiters[id] = e
		}
		e.lastSeen = time.Now()
		mu.Unlock()

		if !e.limiter.Allow() {
			retryAfter := int(1 / cfg.RequestsPerSecond)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorDetail{
				Code:      models.ErrCodeRateLimited,
				Message:   "rate limit exceeded",
				RequestID: GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
