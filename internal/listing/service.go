package listing

import (
	"context"
	"log/slog"

	"github.com/abhishek-Rj/Topprix-sub001/internal/catalog"
	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
)

// NameSource provides category display names. *catalog.Cache implements it.
type NameSource interface {
	Names(ctx context.Context) *catalog.Names
}

// StoreSource resolves a retailer's stores. *retailer.Resolver implements it.
type StoreSource interface {
	Stores(ctx context.Context, email string) []domain.Store
}

// Service serves the browse and retailer listing pages.
type Service struct {
	lister    Lister
	names     NameSource
	stores    StoreSource
	merger    *Merger
	sequencer *Sequencer
	logger    *slog.Logger
}

// NewService creates a listing service.
func NewService(lister Lister, names NameSource, stores StoreSource, merger *Merger, sequencer *Sequencer, logger *slog.Logger) *Service {
	return &Service{
		lister:    lister,
		names:     names,
		stores:    stores,
		merger:    merger,
		sequencer: sequencer,
		logger:    logger,
	}
}

// List returns one page of resource for the public browse pages. view
// identifies the requesting client view; an empty view disables
// sequencing.
func (s *Service) List(ctx context.Context, view string, resource domain.Resource, q Query) (*Result, error) {
	return s.sequenced(ctx, view, resource, func(ctx context.Context) (*Result, error) {
		page, err := s.lister.List(ctx, resource, q.Values(), q.Params())
		if err != nil {
			return nil, err
		}
		return &Result{Items: page.Items, Pagination: page.Pagination}, nil
	})
}

// ListForRetailer returns one page of resource merged across the stores
// owned by the retailer with the given email.
func (s *Service) ListForRetailer(ctx context.Context, view string, resource domain.Resource, q Query, email string) (*Result, error) {
	if !resource.StoreScoped() {
		return nil, apperrors.InvalidInput(string(resource) + " cannot be listed per store")
	}
	return s.sequenced(ctx, view, resource, func(ctx context.Context) (*Result, error) {
		stores := s.stores.Stores(ctx, email)
		return s.merger.Merge(ctx, resource, q, domain.StoreIDs(stores), email)
	})
}

func (s *Service) sequenced(ctx context.Context, view string, resource domain.Resource, fetch func(context.Context) (*Result, error)) (*Result, error) {
	ctx, ticket := s.sequencer.Begin(ctx, view)
	defer ticket.Done()

	// Names are fetched first so the category lookup is ready before the
	// listing arrives.
	names := s.names.Names(ctx)

	res, err := fetch(ctx)

	if !ticket.Current() {
		staleResponsesTotal.WithLabelValues(string(resource)).Inc()
		s.logger.DebugContext(ctx, "discarding superseded listing response",
			slog.String("view", view),
			slog.String("resource", string(resource)),
		)
		return nil, apperrors.StaleRequest(view)
	}
	if err != nil {
		return nil, err
	}

	if res.Items == nil {
		res.Items = []domain.Item{}
	}
	names.Decorate(res.Items)
	return res, nil
}
