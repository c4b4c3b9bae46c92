package dto

import (
	"net/http"

	"github.com/pharmaerp/receiving/internal/domain/shared"
)

// Codes raised by the HTTP layer itself; domain codes pass through unchanged
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:             http.StatusBadRequest,
	shared.CodeBusinessRuleViolation:  http.StatusUnprocessableEntity,
	shared.CodeNotFound:               http.StatusNotFound,
	shared.CodeConflict:               http.StatusConflict,
	shared.CodeInvalidStateTransition: http.StatusUnprocessableEntity,
	shared.CodePersistenceFailure:     http.StatusInternalServerError,
	shared.CodeUpstreamUnavailable:    http.StatusServiceUnavailable,

	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRouteNotFound:   http.StatusNotFound,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
