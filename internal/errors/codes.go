package errors

import "net/http"

// ErrorCode represents the type of error
type ErrorCode string

const (
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrConflict        ErrorCode = "CONFLICT"
	ErrInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrBadRequest      ErrorCode = "BAD_REQUEST"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavail  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrTimeout         ErrorCode = "TIMEOUT"
	ErrDeliveryFailure ErrorCode = "DELIVERY_FAILURE"
	ErrRateLimited     ErrorCode = "RATE_LIMITED"
)

// Reason narrows an ErrorCode to the specific rule that was violated
type Reason string

const (
	ReasonPermissionDenied    Reason = "PERMISSION_DENIED"
	ReasonSelfFollow          Reason = "SELF_FOLLOW"
	ReasonAlreadyFollowing    Reason = "ALREADY_FOLLOWING"
	ReasonDuplicateRequest    Reason = "DUPLICATE_REQUEST"
	ReasonSelfNotify          Reason = "SELF_NOTIFY"
	ReasonInvalidSubscription Reason = "INVALID_SUBSCRIPTION"
	ReasonInvalidAction       Reason = "INVALID_ACTION"
)

// StatusCodeMap maps ErrorCode to HTTP status code
var StatusCodeMap = map[ErrorCode]int{
	ErrNotFound:        http.StatusNotFound,
	ErrUnauthorized:    http.StatusUnauthorized,
	ErrConflict:        http.StatusConflict,
	ErrInvalidInput:    http.StatusUnprocessableEntity,
	ErrBadRequest:      http.StatusBadRequest,
	ErrInternalError:   http.StatusInternalServerError,
	ErrServiceUnavail:  http.StatusServiceUnavailable,
	ErrTimeout:         http.StatusGatewayTimeout,
	ErrDeliveryFailure: http.StatusBadGateway,
	ErrRateLimited:     http.StatusTooManyRequests,
}

// StatusCode returns the HTTP status code for this error code
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}
