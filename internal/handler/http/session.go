package http

import (
	"net/http"

	"github.com/abhishek-Rj/Topprix-sub001/internal/session"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httputil"
)

// GetSession handles GET /api/v1/session.
func GetSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, session.FromContext(r.Context()))
}
