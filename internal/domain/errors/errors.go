package errors

import (
	"errors"
	"net/http"
)

// Sentinel domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrUnsupportedChain   = errors.New("unsupported chain")
	ErrUpstream           = errors.New("upstream failure")
)

// Stable error codes returned in the response envelope.
const (
	CodeValidationError           = "VALIDATION_ERROR"
	CodeInvalidCredentials        = "INVALID_CREDENTIALS"
	CodeAccountLocked             = "ACCOUNT_LOCKED"
	CodeEmailNotVerified          = "EMAIL_NOT_VERIFIED"
	CodeInvalidToken              = "INVALID_TOKEN"
	CodeTokenExpired              = "TOKEN_EXPIRED"
	CodeInvalidAPIKeyFormat       = "INVALID_API_KEY_FORMAT"
	CodeInvalidAPIKey             = "INVALID_API_KEY"
	CodeAPIKeyExpired             = "API_KEY_EXPIRED"
	CodeAPIKeyRevoked             = "API_KEY_REVOKED"
	CodeProjectMismatch           = "PROJECT_MISMATCH"
	CodeProjectNotFound           = "PROJECT_NOT_FOUND"
	CodeIPNotWhitelisted          = "IP_NOT_WHITELISTED"
	CodeInsufficientPermissions   = "INSUFFICIENT_PERMISSIONS"
	CodeRateLimitExceeded         = "RATE_LIMIT_EXCEEDED"
	CodeNotFound                  = "NOT_FOUND"
	CodeConflict                  = "CONFLICT"
	CodePaymasterInsufficientFunds = "PAYMASTER_INSUFFICIENT_FUNDS"
	CodeUpstreamError             = "UPSTREAM_ERROR"
	CodeInternalError             = "INTERNAL_ERROR"
)

// AppError is an application error carrying the HTTP status, a stable code
// and the optional field/suggestions surfaced in the error envelope.
type AppError struct {
	Status      int      `json:"-"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Field       string   `json:"field,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Err         error    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithField attaches the offending request field
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

// WithSuggestions attaches short developer hints
func (e *AppError) WithSuggestions(s ...string) *AppError {
	e.Suggestions = s
	return e
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common constructors

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeValidationError, message, ErrInvalidInput)
}

func Unauthorized(code, message string) *AppError {
	return NewAppError(http.StatusUnauthorized, code, message, ErrUnauthorized)
}

func Forbidden(code, message string) *AppError {
	return NewAppError(http.StatusForbidden, code, message, ErrForbidden)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, ErrAlreadyExists)
}

func RateLimited(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, CodeRateLimitExceeded, message, nil)
}

func Upstream(message string, err error) *AppError {
	return NewAppError(http.StatusBadGateway, CodeUpstreamError, message, err)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// AsAppError normalizes any error into an AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return NotFound("resource not found")
	case errors.Is(err, ErrAlreadyExists):
		return Conflict("resource already exists")
	case errors.Is(err, ErrInvalidInput):
		return BadRequest(err.Error())
	case errors.Is(err, ErrForbidden):
		return Forbidden(CodeInsufficientPermissions, "forbidden")
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return Unauthorized(CodeInvalidCredentials, "unauthorized")
	case errors.Is(err, ErrUpstream):
		return Upstream(err.Error(), err)
	default:
		return InternalError(err)
	}
}
