package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/abhishek-Rj/Topprix-sub001/internal/assets"
	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httputil"
)

// multipartOverhead leaves room for the form fields around the file part.
const multipartOverhead = 1 << 20

// AssetHandler accepts retailer uploads.
type AssetHandler struct {
	service *assets.Service
	logger  *slog.Logger
}

// NewAssetHandler creates an asset handler.
func NewAssetHandler(svc *assets.Service, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{service: svc, logger: logger}
}

// Upload handles POST /api/v1/assets with a multipart body carrying "kind"
// and "file".
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, assets.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, r, apperrors.InvalidInput("file exceeds the 10 MB upload limit"), h.logger)
			return
		}
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid multipart body: "+err.Error()), h.logger)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	kind, ok := assets.ParseKind(r.FormValue("kind"))
	if !ok {
		httputil.WriteError(w, r, apperrors.InvalidInput("kind must be one of logo, barcode, qrcode, flyer_image, flyer_pdf"), h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("file is required"), h.logger)
		return
	}
	defer func() { _ = file.Close() }()

	res, err := h.service.Upload(r.Context(), kind, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, res)
}
