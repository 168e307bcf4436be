package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/abhishek-Rj/Topprix-sub001/internal/consent"
	"github.com/abhishek-Rj/Topprix-sub001/internal/session"
	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httputil"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/validator"
)

// EvaluateRequest is the body of POST /api/v1/consent/evaluate.
type EvaluateRequest struct {
	Path string `json:"path" validate:"required,max=2048"`
}

// ConsentHandler serves the location and login prompt flow.
type ConsentHandler struct {
	service *consent.Service
	logger  *slog.Logger
}

// NewConsentHandler creates a consent handler.
func NewConsentHandler(svc *consent.Service, logger *slog.Logger) *ConsentHandler {
	return &ConsentHandler{service: svc, logger: logger}
}

// Markers handles GET /api/v1/consent.
func (h *ConsentHandler) Markers(w http.ResponseWriter, r *http.Request) {
	key, ok := h.sessionKey(w, r)
	if !ok {
		return
	}

	m, err := h.service.Markers(r.Context(), key)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, m)
}

// Evaluate handles POST /api/v1/consent/evaluate.
func (h *ConsentHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	key, ok := h.sessionKey(w, r)
	if !ok {
		return
	}

	var req EvaluateRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	d, err := h.service.Evaluate(r.Context(), key, req.Path, session.FromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, d)
}

// SubmitLocation handles POST /api/v1/consent/location.
func (h *ConsentHandler) SubmitLocation(w http.ResponseWriter, r *http.Request) {
	key, ok := h.sessionKey(w, r)
	if !ok {
		return
	}

	var req consent.LocationRequest
	if err := validator.Decode(r, &req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}
	req.Zip = strings.TrimSpace(req.Zip)
	req.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	loc, err := h.service.SubmitLocation(r.Context(), key, session.FromContext(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, loc)
}

// Skip handles POST /api/v1/consent/skip.
func (h *ConsentHandler) Skip(w http.ResponseWriter, r *http.Request) {
	key, ok := h.sessionKey(w, r)
	if !ok {
		return
	}

	if err := h.service.Skip(r.Context(), key, session.FromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Login handles POST /api/v1/consent/login.
func (h *ConsentHandler) Login(w http.ResponseWriter, r *http.Request) {
	key, ok := h.sessionKey(w, r)
	if !ok {
		return
	}

	if err := h.service.Login(r.Context(), key); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionKey returns the marker store key of the caller. Anonymous callers
// must send X-Visitor-ID.
func (h *ConsentHandler) sessionKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := session.Key(r)
	if key == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("X-Visitor-ID header is required for anonymous callers"), h.logger)
		return "", false
	}
	return key, true
}
