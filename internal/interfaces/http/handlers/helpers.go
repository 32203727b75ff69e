package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	domainerrors "nexuspay.backend/internal/domain/errors"
)

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// queryTimeRange parses optional ISO-8601 from/to query parameters.
// Zero values mean "unbounded"; callers apply their own defaults.
func queryTimeRange(c *gin.Context) (from, to time.Time, err error) {
	if raw := c.Query("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, domainerrors.BadRequest("from must be an ISO-8601 timestamp").WithField("from")
		}
	}
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, domainerrors.BadRequest("to must be an ISO-8601 timestamp").WithField("to")
		}
	}
	return from, to, nil
}
