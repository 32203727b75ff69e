package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/pkg/utils"
)

// APIVersion is reported in every response envelope
const APIVersion = "v1"

// RequestIDKey is the gin context key holding the per-request ID
const RequestIDKey = "request_id"

// RateLimitInfo mirrors the X-RateLimit-* headers inside the meta block
type RateLimitInfo struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"resetAt"`
}

// RateLimitKey is the gin context key a rate limiter uses to publish its state
const RateLimitKey = "rate_limit_info"

// Meta is the envelope metadata block
type Meta struct {
	Timestamp  time.Time      `json:"timestamp"`
	RequestID  string         `json:"requestId"`
	APIVersion string         `json:"apiVersion"`
	RateLimit  *RateLimitInfo `json:"rateLimit,omitempty"`
}

// ErrorBody is the error half of the envelope
type ErrorBody struct {
	Code             string      `json:"code"`
	Message          string      `json:"message"`
	Details          interface{} `json:"details,omitempty"`
	Field            string      `json:"field,omitempty"`
	Suggestions      []string    `json:"suggestions,omitempty"`
	DocumentationURL string      `json:"documentationUrl,omitempty"`
}

// Envelope is the uniform response shape
type Envelope struct {
	Success    bool                  `json:"success"`
	Data       interface{}           `json:"data,omitempty"`
	Error      *ErrorBody            `json:"error,omitempty"`
	Pagination *utils.PaginationMeta `json:"pagination,omitempty"`
	Meta       Meta                  `json:"meta"`
}

func meta(c *gin.Context) Meta {
	m := Meta{
		Timestamp:  time.Now().UTC(),
		RequestID:  c.GetString(RequestIDKey),
		APIVersion: APIVersion,
	}
	if v, ok := c.Get(RateLimitKey); ok {
		if info, ok := v.(*RateLimitInfo); ok {
			m.RateLimit = info
		}
	}
	return m
}

// Success sends a success envelope
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data, Meta: meta(c)})
}

// Paginated sends a success envelope with pagination metadata
func Paginated(c *gin.Context, data interface{}, pagination utils.PaginationMeta) {
	c.JSON(http.StatusOK, Envelope{
		Success:    true,
		Data:       data,
		Pagination: &pagination,
		Meta:       meta(c),
	})
}

// Error sends an error envelope, normalizing any error into an AppError
func Error(c *gin.Context, err error) {
	appErr := domainerrors.AsAppError(err)
	c.JSON(appErr.Status, Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:        appErr.Code,
			Message:     appErr.Message,
			Field:       appErr.Field,
			Suggestions: appErr.Suggestions,
		},
		Meta: meta(c),
	})
}

// AbortError sends an error envelope and stops the middleware chain
func AbortError(c *gin.Context, err error) {
	appErr := domainerrors.AsAppError(err)
	c.Abort()
	c.JSON(appErr.Status, Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:        appErr.Code,
			Message:     appErr.Message,
			Field:       appErr.Field,
			Suggestions: appErr.Suggestions,
		},
		Meta: meta(c),
	})
}
