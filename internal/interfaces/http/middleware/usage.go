package middleware

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/volatiletech/null/v8"
	"nexuspay.backend/internal/domain/entities"
	"nexuspay.backend/internal/infrastructure/jobs"
	"nexuspay.backend/pkg/utils"
)

const usageErrorCapture = 2048

type usageWriter struct {
	gin.ResponseWriter
	tail bytes.Buffer
}

func (w *usageWriter) Write(b []byte) (int, error) {
	if w.tail.Len() < usageErrorCapture {
		room := usageErrorCapture - w.tail.Len()
		if room > len(b) {
			room = len(b)
		}
		w.tail.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

// UsageRecorderMiddleware appends an APIKeyUsage row after every API-key
// authenticated request. Recording is fire-and-forget through the bounded
// usage writer queue.
func UsageRecorderMiddleware(writer *jobs.UsageWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		capture := &usageWriter{ResponseWriter: c.Writer}
		c.Writer = capture

		c.Next()

		key, ok := GetAPIKey(c)
		if !ok {
			return
		}

		usage := &entities.APIKeyUsage{
			UsageID:        utils.NewID(utils.PrefixUsage),
			APIKeyID:       key.ID,
			ProjectID:      key.ProjectID,
			Endpoint:       c.FullPath(),
			Method:         c.Request.Method,
			StatusCode:     capture.Status(),
			ResponseTimeMs: time.Since(start).Milliseconds(),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			CreatedAt:      time.Now().UTC(),
		}
		if c.Request.ContentLength > 0 {
			usage.RequestSize = null.Int64From(c.Request.ContentLength)
		}
		if size := capture.Size(); size > 0 {
			usage.ResponseSize = null.Int64From(int64(size))
		}
		if capture.Status() >= 400 {
			usage.ErrorMessage = null.StringFrom(errorSummary(capture.tail.Bytes()))
		}

		writer.Record(usage)
	}
}

// errorSummary pulls the envelope's error message out of a failed response
// body, falling back to a truncated raw body.
func errorSummary(body []byte) string {
	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return envelope.Error.Code + ": " + envelope.Error.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
