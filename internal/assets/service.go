package assets

import (
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/slug"
)

// MaxUploadBytes caps a single asset upload.
const MaxUploadBytes = 10 << 20

// Kind is the role an uploaded asset plays.
type Kind string

const (
	KindLogo       Kind = "logo"
	KindBarcode    Kind = "barcode"
	KindQRCode     Kind = "qrcode"
	KindFlyerImage Kind = "flyer_image"
	KindFlyerPDF   Kind = "flyer_pdf"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLogo, KindBarcode, KindQRCode, KindFlyerImage, KindFlyerPDF:
		return k, true
	default:
		return "", false
	}
}

// Service names uploads and hands them to the configured storage.
type Service struct {
	storage Storage
	logger  *slog.Logger
}

// NewService creates an asset service.
func NewService(storage Storage, logger *slog.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// Upload stores data under a fresh key of the form <kind>/<name>-<uuid><ext>,
// where name is the slug of the original file name.
func (s *Service) Upload(ctx context.Context, kind Kind, filename, contentType string, size int64, data io.Reader) (*UploadResult, error) {
	if size > MaxUploadBytes {
		return nil, apperrors.InvalidInput("file exceeds the 10 MB upload limit")
	}

	key := objectKey(kind, filename)
	res, err := s.storage.Upload(ctx, &UploadInput{
		Key:         key,
		ContentType: contentType,
		Size:        size,
		Data:        data,
	})
	if err != nil {
		return nil, apperrors.Upstream("assets", err)
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "asset uploaded",
		slog.String("kind", string(kind)),
		slog.String("key", res.Key),
		slog.Int64("size", size),
	)
	return res, nil
}

func objectKey(kind Kind, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	name := slug.Generate(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if name == "" {
		return string(kind) + "/" + uuid.NewString() + ext
	}
	return string(kind) + "/" + name + "-" + uuid.NewString() + ext
}
