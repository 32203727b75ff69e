package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/redis"
)

const cacheIndexTTL = time.Hour

// callerID identifies whoever is asking, for cache scoping
func callerID(c *gin.Context) string {
	if user, ok := GetUser(c); ok {
		return user.ID
	}
	if key, ok := GetAPIKey(c); ok {
		return key.ID
	}
	if IsDevKey(c) {
		if project, ok := GetProject(c); ok {
			return "dev:" + project.ID
		}
	}
	return ""
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// CacheMiddleware is a per-caller TTL read cache for idempotent GETs.
// Only 200 responses are written back; refresh=true bypasses the read but
// still refreshes the stored copy. Any mutation by the same caller drops
// that caller's entries.
func CacheMiddleware(ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := callerID(c)
		if uid == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		indexKey := "rcache:index:" + uid

		if c.Request.Method != http.MethodGet {
			c.Next()
			if c.Writer.Status() < 400 {
				invalidateCaller(c, indexKey)
			}
			return
		}

		cacheKey := "rcache:" + uid + ":" + c.Request.URL.Path + "?" + c.Request.URL.RawQuery
		if c.Query("refresh") != "true" {
			if body, err := redis.Get(ctx, cacheKey); err == nil {
				c.Header("X-Cache", "HIT")
				c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(body))
				c.Abort()
				return
			}
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		if writer.Status() != http.StatusOK {
			return
		}
		if err := redis.Set(ctx, cacheKey, writer.body.String(), ttl); err != nil {
			logger.Warn(ctx, "cache write failed", zap.String("key", cacheKey), zap.Error(err))
			return
		}
		client := redis.GetClient()
		if err := client.SAdd(ctx, indexKey, cacheKey).Err(); err == nil {
			client.Expire(ctx, indexKey, cacheIndexTTL)
		}
	}
}

func invalidateCaller(c *gin.Context, indexKey string) {
	ctx := c.Request.Context()
	client := redis.GetClient()
	keys, err := client.SMembers(ctx, indexKey).Result()
	if err != nil {
		logger.Warn(ctx, "cache invalidation read failed", zap.String("index", indexKey), zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := redis.Del(ctx, keys...); err != nil {
			logger.Warn(ctx, "cache invalidation failed", zap.String("index", indexKey), zap.Error(err))
		}
	}
	_ = redis.Del(ctx, indexKey)
}
