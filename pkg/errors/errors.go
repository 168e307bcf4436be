// Package errors defines the BFF's error vocabulary. Every failure that
// reaches a handler is either an *AppError or wraps one of the sentinels
// below, which fixes its HTTP status and public error code.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrStaleRequest   = errors.New("stale request")
	ErrUpstream       = errors.New("upstream failure")
	ErrServiceUnavail = errors.New("service unavailable")
)

type kind struct {
	sentinel error
	status   int
	code     string
}

// StatusClientClosedRequest answers a request whose caller went away. The
// client never reads it; it keeps cancellations out of the 5xx counts.
const StatusClientClosedRequest = 499

// kinds is ordered so the more specific sentinel wins when an error wraps
// several.
var kinds = []kind{
	{context.Canceled, StatusClientClosedRequest, "CLIENT_CLOSED_REQUEST"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
	{ErrStaleRequest, http.StatusConflict, "STALE_REQUEST"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ErrConflict, http.StatusConflict, "CONFLICT"},
	{ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrServiceUnavail, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	{ErrUpstream, http.StatusBadGateway, "UPSTREAM_ERROR"},
	{ErrInternal, http.StatusInternalServerError, "INTERNAL_ERROR"},
}

func kindOf(err error) kind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k
		}
	}
	return kind{ErrInternal, http.StatusInternalServerError, "INTERNAL_ERROR"}
}

// AppError is an error with a public code and message. Err keeps the cause
// for logs and errors.Is.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

func newError(sentinel error, message string) *AppError {
	k := kindOf(sentinel)
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
}

// NotFound reports a missing resource, e.g. NotFound("store", id).
func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s %s not found", resource, id))
}

// InvalidInput is a 400 with message shown to the client.
func InvalidInput(message string) *AppError { return newError(ErrInvalidInput, message) }

// Unauthorized is a 401: missing or unverifiable credentials.
func Unauthorized(message string) *AppError { return newError(ErrUnauthorized, message) }

// Forbidden is a 403: the caller is known but lacks the role.
func Forbidden(message string) *AppError { return newError(ErrForbidden, message) }

// Conflict is a 409.
func Conflict(message string) *AppError { return newError(ErrConflict, message) }

// StaleRequest reports a listing response that a newer request from the
// same view has superseded.
func StaleRequest(view string) *AppError {
	return newError(ErrStaleRequest, fmt.Sprintf("request for view %q was superseded by a newer one", view))
}

// Upstream is a 502 for a failed call to service, or the timeout and
// cancellation statuses when cause is a context error. The cause stays
// reachable through errors.Is.
func Upstream(service string, cause error) *AppError {
	e := newError(ErrUpstream, service+" request failed")
	if k := kindOf(cause); k.sentinel == context.Canceled || k.sentinel == context.DeadlineExceeded {
		e.Status, e.Code = k.status, k.code
	}
	e.Err = fmt.Errorf("%w: %w", ErrUpstream, cause)
	return e
}

// Unavailable is a 503, used while an upstream breaker is open.
func Unavailable(message string) *AppError { return newError(ErrServiceUnavail, message) }

// Internal hides cause behind a generic 500 message.
func Internal(cause error) *AppError {
	e := newError(ErrInternal, "an internal error occurred")
	e.Err = fmt.Errorf("%w: %w", ErrInternal, cause)
	return e
}

// Wrap prefixes err with message, keeping it matchable.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus is the status an error is answered with. Unknown errors are
// 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return kindOf(err).status
}

// Code is the public error code for err, "INTERNAL_ERROR" when unknown.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return kindOf(err).code
}
