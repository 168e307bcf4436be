package listing

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	"github.com/abhishek-Rj/Topprix-sub001/internal/event"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/pagination"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/tracing"
)

const (
	DefaultFanOutLimit       = 1000
	DefaultFanOutConcurrency = 8

	eventPublishTimeout = 2 * time.Second
)

// Lister fetches one page of a backend listing. *backend.Client implements
// it.
type Lister interface {
	List(ctx context.Context, resource domain.Resource, query url.Values, fallback pagination.Params) (*domain.ListPage, error)
}

// Result is a listing page returned to the client.
type Result struct {
	Items          []domain.Item       `json:"items"`
	Pagination     pagination.Envelope `json:"pagination"`
	FailedStoreIDs []string            `json:"failedStoreIds,omitempty"`
}

// Merger lists a resource across all stores of a retailer.
type Merger struct {
	lister      Lister
	events      *event.Producer
	limit       int
	concurrency int
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewMerger creates a Merger. limit is the page size requested from each
// store; concurrency bounds the number of stores queried at once.
func NewMerger(lister Lister, events *event.Producer, limit, concurrency int, logger *slog.Logger) *Merger {
	if limit <= 0 {
		limit = DefaultFanOutLimit
	}
	if concurrency <= 0 {
		concurrency = DefaultFanOutConcurrency
	}
	return &Merger{
		lister:      lister,
		events:      events,
		limit:       limit,
		concurrency: concurrency,
		tracer:      tracing.Tracer("github.com/abhishek-Rj/Topprix-sub001/internal/listing"),
		logger:      logger,
	}
}

// Merge lists resource for the given stores.
//
// With no stores nothing is requested and an empty first page is returned.
// A single store is queried with the client's own page, and its error is
// returned. Several stores are each queried for their first FanOutLimit
// items; the results are concatenated in store order and the requested page
// is cut from the concatenation. A store that fails contributes no items and
// is reported in FailedStoreIDs.
func (m *Merger) Merge(ctx context.Context, resource domain.Resource, q Query, stores []string, retailerEmail string) (*Result, error) {
	fanOutStores.WithLabelValues(string(resource)).Observe(float64(len(stores)))

	switch len(stores) {
	case 0:
		return &Result{
			Items:      []domain.Item{},
			Pagination: pagination.Empty(pagination.Params{Page: 1, Limit: q.Limit}),
		}, nil
	case 1:
		q.StoreID = stores[0]
		page, err := m.lister.List(ctx, resource, q.Values(), q.Params())
		if err != nil {
			return nil, err
		}
		return &Result{Items: page.Items, Pagination: page.Pagination}, nil
	}

	perStore := make([][]domain.Item, len(stores))
	failed := make([]bool, len(stores))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, storeID := range stores {
		g.Go(func() error {
			items, err := m.fetchStore(gctx, resource, q, storeID)
			if err != nil {
				failed[i] = true
				return nil
			}
			perStore[i] = items
			return nil
		})
	}
	_ = g.Wait()

	// A superseded or abandoned request makes every store "fail"; that is
	// not a partial merge.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []domain.Item
	var failedIDs []string
	for i, items := range perStore {
		if failed[i] {
			failedIDs = append(failedIDs, stores[i])
			continue
		}
		merged = append(merged, items...)
	}

	if len(failedIDs) > 0 {
		m.reportPartial(ctx, resource, len(stores), failedIDs, retailerEmail)
	}

	return &Result{
		Items:          pagination.Slice(merged, q.Params()),
		Pagination:     pagination.Compute(len(merged), q.Params()),
		FailedStoreIDs: failedIDs,
	}, nil
}

func (m *Merger) fetchStore(ctx context.Context, resource domain.Resource, q Query, storeID string) (items []domain.Item, err error) {
	ctx, span := m.tracer.Start(ctx, "listing.fetch_store",
		trace.WithAttributes(
			attribute.String("listing.resource", string(resource)),
			attribute.String("listing.store_id", storeID),
		),
	)
	defer func() {
		tracing.EndSpan(span, err, attribute.Int("listing.items", len(items)))
	}()

	q.StoreID = storeID
	q.Page = 1
	q.Limit = m.limit

	page, err := m.lister.List(ctx, resource, q.Values(), q.Params())
	if err != nil {
		if ctx.Err() == nil {
			logger.WithContext(ctx, m.logger).WarnContext(ctx, "store listing failed",
				slog.String("resource", string(resource)),
				slog.String("store_id", storeID),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}
	return page.Items, nil
}

func (m *Merger) reportPartial(ctx context.Context, resource domain.Resource, storeCount int, failedIDs []string, retailerEmail string) {
	fanOutStoreFailuresTotal.WithLabelValues(string(resource)).Add(float64(len(failedIDs)))

	// The event outlives the client request; give it its own deadline.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	err := m.events.PublishPartialMerge(pubCtx, event.PartialMergeData{
		Resource:       string(resource),
		RetailerEmail:  retailerEmail,
		StoreCount:     storeCount,
		FailedStoreIDs: failedIDs,
	})
	if err != nil {
		logger.WithContext(ctx, m.logger).WarnContext(ctx, "failed to publish partial merge event",
			slog.String("error", err.Error()),
		)
	}
}
