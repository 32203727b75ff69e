package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// APIKeyUsage is an append-only per-request usage record, written
// asynchronously after the response is sent
type APIKeyUsage struct {
	UsageID        string      `json:"usageId"`
	APIKeyID       string      `json:"apiKeyId"`
	ProjectID      string      `json:"projectId"`
	Endpoint       string      `json:"endpoint"`
	Method         string      `json:"method"`
	StatusCode     int         `json:"statusCode"`
	ResponseTimeMs int64       `json:"responseTimeMs"`
	IPAddress      string      `json:"ipAddress"`
	UserAgent      string      `json:"userAgent"`
	RequestSize    null.Int64  `json:"requestSize,omitempty"`
	ResponseSize   null.Int64  `json:"responseSize,omitempty"`
	ErrorMessage   null.String `json:"errorMessage,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}
