package http

import (
	"net/http"

	"github.com/abhishek-Rj/Topprix-sub001/internal/catalog"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httputil"
)

// CatalogHandler serves the category tree and display names.
type CatalogHandler struct {
	cache *catalog.Cache
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(cache *catalog.Cache) *CatalogHandler {
	return &CatalogHandler{cache: cache}
}

// Tree handles GET /api/v1/categories. A failed fetch yields an empty tree.
func (h *CatalogHandler) Tree(w http.ResponseWriter, r *http.Request) {
	names := h.cache.Names(r.Context())
	noStoreIfEmpty(w, names)
	httputil.WriteData(w, http.StatusOK, map[string]any{"categories": names.Tree()})
}

// Names handles GET /api/v1/categories/names?categoryId=&subcategoryId=.
func (h *CatalogHandler) Names(w http.ResponseWriter, r *http.Request) {
	names := h.cache.Names(r.Context())
	noStoreIfEmpty(w, names)

	out := map[string]string{}
	if id := r.URL.Query().Get("categoryId"); id != "" {
		out["categoryName"] = names.Category(id)
	}
	if id := r.URL.Query().Get("subcategoryId"); id != "" {
		out["subcategoryName"] = names.Subcategory(id)
	}
	httputil.WriteData(w, http.StatusOK, out)
}

// noStoreIfEmpty keeps caches from holding on to the fallback answer
// served while the category fetch is failing.
func noStoreIfEmpty(w http.ResponseWriter, names *catalog.Names) {
	if len(names.Tree()) == 0 {
		w.Header().Set("Cache-Control", "no-store")
	}
}
