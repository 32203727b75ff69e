package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nexuspay.backend/internal/config"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/interfaces/http/response"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/redis"
)

// windowCheck increments the counter for the current window and reports
// whether the request is still inside the limit. Windows are fixed and
// clock-aligned (start times truncated to the window size), not sliding: a
// full-limit burst at a boundary can land up to twice the limit across two
// adjacent windows, but no single window ever admits more than the limit.
// Fail-open on Redis errors.
func windowCheck(c *gin.Context, key string, limit int, window time.Duration) (remaining int, resetAt time.Time, ok bool) {
	bucket := time.Now().UTC().Truncate(window)
	resetAt = bucket.Add(window)
	counterKey := fmt.Sprintf("%s:%d", key, bucket.Unix())

	n, err := redis.IncrWithExpiry(c.Request.Context(), counterKey, window)
	if err != nil {
		logger.Warn(c.Request.Context(), "rate limit counter unavailable", zap.String("key", key), zap.Error(err))
		return limit, resetAt, true
	}

	remaining = limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetAt, n <= int64(limit)
}

func setRateHeaders(c *gin.Context, limit, remaining int, resetAt time.Time) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	c.Set(response.RateLimitKey, &response.RateLimitInfo{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt.Unix(),
	})
}

// RateLimitMiddleware applies the per-key hourly window, the project's
// configured per-minute window and the per-project hourly window. Dev
// sentinel keys skip all of them, as do session-authenticated requests.
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, hasKey := GetAPIKey(c)
		if !hasKey || IsDevKey(c) {
			c.Next()
			return
		}

		remaining, resetAt, ok := windowCheck(c, "ratelimit:key:"+key.ID, cfg.PerKeyPerHour, time.Hour)
		setRateHeaders(c, cfg.PerKeyPerHour, remaining, resetAt)
		if !ok {
			response.AbortError(c, domainerrors.RateLimited("API key request limit exceeded"))
			return
		}

		if project, okProject := GetProject(c); okProject {
			if perMinute := project.Settings.RateLimitPerMinute; perMinute > 0 {
				remaining, resetAt, ok = windowCheck(c, "ratelimit:project:minute:"+project.ID, perMinute, time.Minute)
				if !ok {
					setRateHeaders(c, perMinute, remaining, resetAt)
					response.AbortError(c, domainerrors.RateLimited("project per-minute limit exceeded"))
					return
				}
			}

			remaining, resetAt, ok = windowCheck(c, "ratelimit:project:"+project.ID, cfg.PerProjectPerHour, time.Hour)
			if !ok {
				setRateHeaders(c, cfg.PerProjectPerHour, remaining, resetAt)
				response.AbortError(c, domainerrors.RateLimited("project request limit exceeded"))
				return
			}
		}

		c.Next()
	}
}

// IPRateLimitMiddleware limits unauthenticated routes per caller IP, e.g.
// 10/15min on /auth/* and 3/hour on password reset.
func IPRateLimitMiddleware(name string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		remaining, resetAt, ok := windowCheck(c, "ratelimit:ip:"+name+":"+c.ClientIP(), limit, window)
		setRateHeaders(c, limit, remaining, resetAt)
		if !ok {
			response.AbortError(c, domainerrors.RateLimited("too many requests, slow down"))
			return
		}
		c.Next()
	}
}
