// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrUnavailable   = errors.New("service unavailable")
	ErrQuotaExceeded = errors.New("quota exceeded")
)

const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeTokenRevoked    = "TOKEN_REVOKED"
	CodeTokenInvalid    = "TOKEN_INVALID"
	CodeUpgradeRequired = "UPGRADE_REQUIRED"
	CodeInternal        = "INTERNAL_ERROR"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	CodeRateLimited     = "RATE_LIMITED"
)

// AppError is an error that knows how it should be rendered to API clients.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Details    any
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{StatusCode: status, Code: code, Message: message}
}

func BadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message)
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message)
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		http.StatusNotFound,
		CodeNotFound,
		fmt.Sprintf("%s not found", resource),
	)
}

func TokenExpiredError() *AppError {
	return NewAppError(
		http.StatusUnauthorized,
		CodeTokenExpired,
		"access token has expired",
	)
}

func TokenRevokedError() *AppError {
	return NewAppError(
		http.StatusUnauthorized,
		CodeTokenRevoked,
		"access token has been revoked",
	)
}

func TokenInvalidError() *AppError {
	return NewAppError(
		http.StatusUnauthorized,
		CodeTokenInvalid,
		"access token is invalid",
	)
}

// UpgradeRequiredError signals a blocked entitlement. Details carries the
// decision so clients can render the upgrade prompt.
func UpgradeRequiredError(message string, details any) *AppError {
	return &AppError{
		StatusCode: http.StatusPaymentRequired,
		Code:       CodeUpgradeRequired,
		Message:    message,
		Details:    details,
	}
}

func InternalError(err error) *AppError {
	return &AppError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    "internal server error",
		Err:        err,
	}
}

// ErrorFromSentinel maps the package sentinels onto API errors. Unknown
// errors become a 500.
func ErrorFromSentinel(err error, resource string) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NotFoundError(resource)
	case errors.Is(err, ErrDuplicateKey):
		return NewAppError(
			http.StatusConflict,
			CodeConflict,
			fmt.Sprintf("%s already exists", resource),
		)
	case errors.Is(err, ErrInvalidInput):
		return BadRequestError(err.Error())
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError("authentication required")
	case errors.Is(err, ErrForbidden):
		return ForbiddenError("insufficient permissions")
	case errors.Is(err, ErrQuotaExceeded):
		return UpgradeRequiredError(fmt.Sprintf("%s quota exhausted", resource), nil)
	case errors.Is(err, ErrUnavailable):
		return NewAppError(
			http.StatusServiceUnavailable,
			CodeUnavailable,
			"service temporarily unavailable",
		)
	default:
		return InternalError(err)
	}
}
