// Package assets stores the binary files retailers attach to their stores
// and offers: logos, barcodes, QR codes, flyer images and PDFs. File
// contents are passed through untouched.
package assets

import (
	"context"
	"io"
)

// Storage is where asset bytes live. Keys are chosen by the caller and are
// stable, so a re-upload under the same key replaces the file.
type Storage interface {
	Upload(ctx context.Context, in *UploadInput) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	// GetURL resolves key to the URL clients fetch it from.
	GetURL(ctx context.Context, key string) (string, error)
}

// UploadInput is one file to store. Size is advisory; -1 or 0 means
// unknown.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult is returned to the client after an upload.
type UploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
