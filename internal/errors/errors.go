// Package errors defines the failures krishi reports to API clients.
// Every error maps to a status code and the body {error, message, field?}.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Codes sent in the "error" field of a response body
const (
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeConflict         = "CONFLICT"
	CodeUpstream         = "UPSTREAM_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// AppError is an error that knows its HTTP status and response code
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

type reply struct {
	status  int
	code    string
	message string
}

func (r reply) Error() string   { return r.message }
func (r reply) HTTPStatus() int { return r.status }
func (r reply) Code() string    { return r.code }

// NotFoundError is returned for missing records. Records owned by another
// account are reported the same way.
type NotFoundError struct {
	reply
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{reply{http.StatusNotFound, CodeNotFound, resource + " not found"}}
}

// ValidationError rejects request input. Field is the json name of the
// offending field, empty when the body as a whole is unusable.
type ValidationError struct {
	reply
	Field string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{reply: reply{http.StatusBadRequest, CodeValidation, message}, Field: field}
}

// PermissionDeniedError is returned when a non-staff account reaches a
// staff-only operation
type PermissionDeniedError struct {
	reply
}

func NewPermissionDeniedError(action, resource string) *PermissionDeniedError {
	return &PermissionDeniedError{reply{http.StatusForbidden, CodePermissionDenied,
		fmt.Sprintf("permission denied: %s %s", action, resource)}}
}

type UnauthorizedError struct {
	reply
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	if message == "" {
		message = "authentication required"
	}
	return &UnauthorizedError{reply{http.StatusUnauthorized, CodeUnauthorized, message}}
}

// ConflictError reports a uniqueness clash such as a taken username
type ConflictError struct {
	reply
}

func NewConflictError(resource string) *ConflictError {
	return &ConflictError{reply{http.StatusConflict, CodeConflict, resource + " already exists"}}
}

// InternalError hides the cause from the client but keeps it for logs
type InternalError struct {
	reply
	cause error
}

func NewInternalError(cause error) *InternalError {
	return &InternalError{reply: reply{http.StatusInternalServerError, CodeInternal, "internal server error"}, cause: cause}
}

func (e *InternalError) Unwrap() error { return e.cause }

// UpstreamKind classifies a failed call to an external provider
type UpstreamKind string

const (
	UpstreamTimeout     UpstreamKind = "timeout"
	UpstreamRateLimited UpstreamKind = "rate_limited"
	UpstreamMalformed   UpstreamKind = "malformed_response"
	UpstreamUnavailable UpstreamKind = "unavailable"
)

// UpstreamError is a failed call to the AI, weather, SMS or mail provider
type UpstreamError struct {
	reply
	Provider string
	Kind     UpstreamKind
	cause    error
}

func NewUpstreamError(provider string, kind UpstreamKind, cause error) *UpstreamError {
	status := http.StatusBadGateway
	switch kind {
	case UpstreamTimeout:
		status = http.StatusGatewayTimeout
	case UpstreamRateLimited:
		status = http.StatusTooManyRequests
	}
	return &UpstreamError{
		reply:    reply{status, CodeUpstream, fmt.Sprintf("%s provider %s", provider, kind)},
		Provider: provider,
		Kind:     kind,
		cause:    cause,
	}
}

func (e *UpstreamError) Unwrap() error { return e.cause }

// ToHTTPError returns the status and body for err. Errors that are not
// AppErrors are reported as internal without their text.
func ToHTTPError(err error) (int, map[string]interface{}) {
	if err == nil {
		return http.StatusOK, nil
	}

	var ae AppError
	if !stderrors.As(err, &ae) {
		ae = NewInternalError(err)
	}
	body := map[string]interface{}{
		"error":   ae.Code(),
		"message": ae.Error(),
	}
	var ve *ValidationError
	if stderrors.As(err, &ve) && ve.Field != "" {
		body["field"] = ve.Field
	}
	return ae.HTTPStatus(), body
}

// IsNotFound reports whether err is, or wraps, a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}
