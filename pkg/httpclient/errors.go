package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
)

// UpstreamErrorBody covers the error shapes the REST backend and the
// geocoding service produce:
//
//	{"error": {"code": "...", "message": "..."}}
//	{"error": "..."}
//	{"message": "..."}
type UpstreamErrorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type structuredError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decode returns the code and message carried by the body, if any.
func (b UpstreamErrorBody) decode() (code, message string, ok bool) {
	raw := strings.TrimSpace(string(b.Error))
	if raw != "" && raw != "null" {
		var se structuredError
		if json.Unmarshal(b.Error, &se) == nil && (se.Code != "" || se.Message != "") {
			return se.Code, se.Message, true
		}
		var s string
		if json.Unmarshal(b.Error, &s) == nil && s != "" {
			return "", s, true
		}
	}
	if b.Message != "" {
		return "", b.Message, true
	}
	return "", "", false
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. Recognized bodies keep their message; anything else is
// reported with the status code and raw body.
//
// The caller should only invoke this when resp.StatusCode indicates an error.
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		return mapUpstreamError(resp.StatusCode, "", fmt.Sprintf("failed to read body: %v", err), serviceName)
	}

	var body UpstreamErrorBody
	if json.Unmarshal(bodyBytes, &body) == nil {
		if code, message, ok := body.decode(); ok {
			return mapUpstreamError(resp.StatusCode, code, message, serviceName)
		}
	}

	message := strings.TrimSpace(string(bodyBytes))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return mapUpstreamError(resp.StatusCode, "", message, serviceName)
}

// mapUpstreamError translates an upstream status code into an AppError that
// preserves the error semantics for the BFF's own clients.
func mapUpstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName, "resource")
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualifiedMsg)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualifiedMsg)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualifiedMsg)
	case status == http.StatusServiceUnavailable:
		return apperrors.Unavailable(qualifiedMsg)
	case status >= 500:
		return apperrors.Upstream(serviceName, fmt.Errorf("status %d (%s): %s", status, code, message))
	default:
		if code == "" {
			code = "UPSTREAM_ERROR"
		}
		return &apperrors.AppError{
			Code:    code,
			Message: qualifiedMsg,
			Status:  status,
		}
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
