package errors

import "net/http"

// AppError is a custom error type carrying an HTTP status code and a
// machine-readable kind for API clients.
type AppError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError creates a new AppError
func NewAppError(code int, kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Error kinds surfaced to clients
const (
	KindValidation = "validation_error"
	KindForbidden  = "forbidden"
	KindNotFound   = "not_found"
	KindInternal   = "internal_error"
	KindRateLimit  = "rate_limited"
	KindAuth       = "unauthorized"
)

// Common errors
var (
	ErrInvalidRequest = NewAppError(http.StatusBadRequest, KindValidation, "Invalid request parameters")
	ErrUnauthorized   = NewAppError(http.StatusUnauthorized, KindAuth, "Unauthorized access")
	ErrForbidden      = NewAppError(http.StatusForbidden, KindForbidden, "Access denied")
	ErrNotFound       = NewAppError(http.StatusNotFound, KindNotFound, "Resource not found")
	ErrInternalServer = NewAppError(http.StatusInternalServerError, KindInternal, "Internal server error")
	ErrRateLimit      = NewAppError(http.StatusTooManyRequests, KindRateLimit, "Rate limit exceeded")
)

// Helper functions to create specific errors
func BadRequest(msg string) *AppError {
	return NewAppError(http.StatusBadRequest, KindValidation, msg)
}

func NotFound(msg string) *AppError {
	return NewAppError(http.StatusNotFound, KindNotFound, msg)
}

func Unauthorized(msg string) *AppError {
	return NewAppError(http.StatusUnauthorized, KindAuth, msg)
}

func Forbidden(msg string) *AppError {
	return NewAppError(http.StatusForbidden, KindForbidden, msg)
}

func Internal(msg string) *AppError {
	return NewAppError(http.StatusInternalServerError, KindInternal, msg)
}
