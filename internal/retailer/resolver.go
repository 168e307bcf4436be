// Package retailer resolves the set of stores a signed-in retailer owns.
package retailer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

// Backend is the subset of the backend client used for store resolution.
type Backend interface {
	UserIDByEmail(ctx context.Context, email string) (string, error)
	StoresByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Store, error)
}

// Resolver maps a retailer's email to the stores they own.
type Resolver struct {
	backend Backend
	limit   int
	logger  *slog.Logger
}

// NewResolver creates a store resolver. limit bounds the store lookup.
func NewResolver(backend Backend, limit int, logger *slog.Logger) *Resolver {
	return &Resolver{backend: backend, limit: limit, logger: logger}
}

// Stores returns the stores owned by the account registered with email.
// Resolution never fails: any error, or an account without an id, yields
// no stores and is only logged.
func (r *Resolver) Stores(ctx context.Context, email string) []domain.Store {
	log := logger.WithContext(ctx, r.logger)

	email = strings.TrimSpace(email)
	if email == "" {
		return []domain.Store{}
	}

	ownerID, err := r.backend.UserIDByEmail(ctx, email)
	if err != nil {
		log.WarnContext(ctx, "retailer id lookup failed", slog.String("error", err.Error()))
		return []domain.Store{}
	}
	if ownerID == "" {
		log.InfoContext(ctx, "no backend account for retailer")
		return []domain.Store{}
	}

	stores, err := r.backend.StoresByOwner(ctx, ownerID, r.limit)
	if err != nil {
		log.WarnContext(ctx, "retailer store lookup failed",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return []domain.Store{}
	}
	if stores == nil {
		return []domain.Store{}
	}
	return stores
}
