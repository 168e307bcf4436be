package http

import (
	"log/slog"
	"net/http"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	"github.com/abhishek-Rj/Topprix-sub001/internal/listing"
	"github.com/abhishek-Rj/Topprix-sub001/internal/retailer"
	"github.com/abhishek-Rj/Topprix-sub001/internal/session"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httputil"
	pkgmiddleware "github.com/abhishek-Rj/Topprix-sub001/pkg/middleware"
)

// ListingHandler serves the public listing endpoints.
type ListingHandler struct {
	service *listing.Service
	logger  *slog.Logger
}

// NewListingHandler creates a listing handler.
func NewListingHandler(svc *listing.Service, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{service: svc, logger: logger}
}

// List handles GET /api/v1/{resource}.
func (h *ListingHandler) List(resource domain.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := parseListingQuery(w, r, h.logger)
		if !ok {
			return
		}

		res, err := h.service.List(r.Context(), viewKey(r, resource), resource, q)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteData(w, http.StatusOK, res)
	}
}

// RetailerHandler serves the retailer dashboard endpoints.
type RetailerHandler struct {
	listings *listing.Service
	stores   *retailer.Resolver
	logger   *slog.Logger
}

// NewRetailerHandler creates a retailer handler.
func NewRetailerHandler(listings *listing.Service, stores *retailer.Resolver, logger *slog.Logger) *RetailerHandler {
	return &RetailerHandler{listings: listings, stores: stores, logger: logger}
}

// Stores handles GET /api/v1/retailer/stores.
func (h *RetailerHandler) Stores(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	stores := h.stores.Stores(r.Context(), sess.Email())
	httputil.WriteData(w, http.StatusOK, map[string]any{"stores": stores})
}

// List handles GET /api/v1/retailer/{resource}: the resource merged across
// every store the caller owns.
func (h *RetailerHandler) List(resource domain.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := parseListingQuery(w, r, h.logger)
		if !ok {
			return
		}

		sess := session.FromContext(r.Context())
		res, err := h.listings.ListForRetailer(r.Context(), viewKey(r, "retailer/"+resource), resource, q, sess.Email())
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteData(w, http.StatusOK, res)
	}
}

// parseListingQuery reads and validates the filter parameters. On failure
// the error response has been written and ok is false.
func parseListingQuery(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (listing.Query, bool) {
	q, err := listing.ParseQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, r, err, logger)
		return listing.Query{}, false
	}
	if err := q.Validate(); err != nil {
		httputil.WriteValidationError(w, err)
		return listing.Query{}, false
	}
	return q, true
}

// viewKey scopes the client's X-View-ID to the caller and the resource so
// two callers, or two lists on one page, never supersede each other.
// Requests without a view id are not sequenced.
func viewKey(r *http.Request, resource domain.Resource) string {
	view := r.Header.Get(pkgmiddleware.HeaderViewID)
	if view == "" {
		return ""
	}
	return session.Key(r) + "|" + view + "|" + string(resource)
}
