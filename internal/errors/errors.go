package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    ErrorCode `json:"code"`
	Reason  Reason    `json:"reason,omitempty"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is makes errors.Is match any APIError with the same code, and the same
// reason when the target names one.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// AsAPIError unwraps err to an *APIError if there is one in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}

// HasReason reports whether err carries the given reason.
func HasReason(err error, reason Reason) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Reason == reason
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// Unauthorized creates an UNAUTHORIZED error for a missing or invalid identity
func Unauthorized(message string) *APIError {
	return &APIError{
		Code:    ErrUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// PermissionDenied is an UNAUTHORIZED error for an identified caller that
// the owner's settings do not allow.
func PermissionDenied(message string) *APIError {
	return &APIError{
		Code:    ErrUnauthorized,
		Reason:  ReasonPermissionDenied,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// Conflict creates a CONFLICT error
func Conflict(reason Reason, message string) *APIError {
	return &APIError{
		Code:    ErrConflict,
		Reason:  reason,
		Message: message,
		Status:  http.StatusConflict,
	}
}

// SelfFollow is returned when a user targets themself with a follow operation
func SelfFollow() *APIError {
	return Conflict(ReasonSelfFollow, "you cannot follow yourself")
}

// AlreadyFollowing is returned when the sender already follows the recipient
func AlreadyFollowing() *APIError {
	return Conflict(ReasonAlreadyFollowing, "already following this user")
}

// DuplicateRequest is returned when a pending follow request already exists
func DuplicateRequest() *APIError {
	return Conflict(ReasonDuplicateRequest, "follow request already sent")
}

// SelfNotify is returned when a notification would be addressed to its sender
func SelfNotify() *APIError {
	return Conflict(ReasonSelfNotify, "sender and recipient must differ")
}

// InvalidInput creates an INVALID_INPUT error
func InvalidInput(reason Reason, field, message string) *APIError {
	return &APIError{
		Code:    ErrInvalidInput,
		Reason:  reason,
		Message: message,
		Field:   field,
		Status:  http.StatusUnprocessableEntity,
	}
}

// ValidationError creates an INVALID_INPUT error for a single field
func ValidationError(field, message string) *APIError {
	return InvalidInput("", field, message)
}

// InvalidSubscription is returned for a malformed push subscription
func InvalidSubscription(field, message string) *APIError {
	return InvalidInput(ReasonInvalidSubscription, field, message)
}

// InvalidAction is returned for an unknown trigger action
func InvalidAction(action string) *APIError {
	return InvalidInput(ReasonInvalidAction, "action", fmt.Sprintf("unknown action %q", action))
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return &APIError{
		Code:    ErrBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *APIError {
	return &APIError{
		Code:    ErrInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error
func ServiceUnavailable(service string) *APIError {
	return &APIError{
		Code:    ErrServiceUnavail,
		Message: fmt.Sprintf("%s is temporarily unavailable", service),
		Status:  http.StatusServiceUnavailable,
	}
}

// Timeout creates a TIMEOUT error
func Timeout(operation string) *APIError {
	return &APIError{
		Code:    ErrTimeout,
		Message: fmt.Sprintf("%s timed out", operation),
		Status:  http.StatusGatewayTimeout,
	}
}

// RateLimited creates a RATE_LIMITED error
func RateLimited(retryAfterSeconds int) *APIError {
	return &APIError{
		Code:    ErrRateLimited,
		Message: fmt.Sprintf("rate limit exceeded, retry in %ds", retryAfterSeconds),
		Status:  http.StatusTooManyRequests,
	}
}

// DeliveryFailure describes a failed push attempt. It never leaves the push package.
func DeliveryFailure(status int, cause error) *APIError {
	e := &APIError{
		Code:    ErrDeliveryFailure,
		Message: fmt.Sprintf("push service answered %d", status),
		Status:  http.StatusBadGateway,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}
