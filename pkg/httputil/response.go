// Package httputil writes the BFF's JSON envelopes: {"data": ...} on
// success and {"error": {...}} on failure.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/validator"
)

// UnavailableRetryAfter is sent with every 503 so clients back off while an
// upstream breaker is open.
const UnavailableRetryAfter = 30

// Response is the envelope around every JSON body.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope. RequestID echoes the
// correlation id so users can quote it to support.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v with status. Encoding errors are dropped since the
// header is already out.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes v as {"data": v}.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// publicMessages are shown for bare sentinel errors, whose own text is not
// meant for clients. INVALID_INPUT is absent: its message is the error text.
var publicMessages = map[string]string{
	"NOT_FOUND":             "resource not found",
	"UNAUTHORIZED":          "authentication required",
	"FORBIDDEN":             "access denied",
	"CONFLICT":              "resource conflict",
	"STALE_REQUEST":         "request was superseded by a newer one",
	"UPSTREAM_ERROR":        "upstream request failed",
	"SERVICE_UNAVAILABLE":   "service temporarily unavailable",
	"INTERNAL_ERROR":        "an internal error occurred",
	"TIMEOUT":               "request timed out",
	"CLIENT_CLOSED_REQUEST": "request canceled",
}

// errorBody maps err onto a status and the body the client sees. Unknown
// errors become a generic 500 so internals never leak.
func errorBody(err error) (int, ErrorResponse) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Status, ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	}
	code := apperrors.Code(err)
	msg, ok := publicMessages[code]
	if !ok {
		msg = err.Error()
	}
	return apperrors.HTTPStatus(err), ErrorResponse{Code: code, Message: msg}
}

// WriteError writes err as an error envelope. 5xx errors are logged with
// the request-scoped logger, or fallback when none was installed. A caller
// that hung up is only logged at debug.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	status, body := errorBody(err)
	body.RequestID = logger.CorrelationIDFromContext(r.Context())

	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	attrs := []any{
		slog.String("code", body.Code),
		slog.Int("status", status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	}
	switch {
	case errors.Is(err, context.Canceled):
		l.DebugContext(r.Context(), "request canceled by client", attrs...)
	case status >= http.StatusInternalServerError:
		l.ErrorContext(r.Context(), "request failed", attrs...)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(UnavailableRetryAfter))
	}
	WriteJSON(w, status, Response{Error: &body})
}

// WriteValidationError writes a 400. Validator failures list the offending
// fields, anything else is reported as INVALID_INPUT with its message.
func WriteValidationError(w http.ResponseWriter, err error) {
	body := ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		body = ErrorResponse{Code: "VALIDATION_ERROR", Message: "request validation failed", Fields: valErr.Fields()}
	}
	WriteJSON(w, http.StatusBadRequest, Response{Error: &body})
}
