package listing

import (
	"context"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek-Rj/Topprix-sub001/internal/catalog"
	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/pagination"
)

type staticNames struct{ names *catalog.Names }

func (s staticNames) Names(context.Context) *catalog.Names { return s.names }

type staticStores struct {
	stores   []domain.Store
	gotEmail string
}

func (s *staticStores) Stores(_ context.Context, email string) []domain.Store {
	s.gotEmail = email
	return s.stores
}

func testNames() staticNames {
	return staticNames{names: catalog.NewNames([]domain.Category{
		{ID: "c1", Name: "Food", Subcategories: []domain.Subcategory{{ID: "s1", Name: "Fruit", CategoryID: "c1"}}},
	})}
}

func newService(l Lister, stores StoreSource) *Service {
	return NewService(l, testNames(), stores, newMerger(l, nil), NewSequencer(), discardLogger())
}

// blockingLister holds every request until release is closed, then answers
// with one item tagged by the request's search term.
type blockingLister struct {
	started chan string
	release chan struct{}
}

func (b *blockingLister) List(ctx context.Context, _ domain.Resource, q url.Values, p pagination.Params) (*domain.ListPage, error) {
	b.started <- q.Get("search")
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	// Answer even when canceled, like a backend that ignored the abort.
	return &domain.ListPage{
		Items:      []domain.Item{{"id": q.Get("search")}},
		Pagination: pagination.Compute(1, p),
	}, nil
}

func TestServiceList_DecoratesNames(t *testing.T) {
	l := &storeLister{page: &domain.ListPage{
		Items:      []domain.Item{{"id": "f1", "categoryId": "c1", "subcategoryId": "s1"}},
		Pagination: pagination.Compute(1, pagination.Params{Page: 1, Limit: 10}),
	}}
	svc := newService(l, &staticStores{})

	res, err := svc.List(context.Background(), "", domain.ResourceFlyers, Query{Page: 1, Limit: 10})
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "Food", res.Items[0]["categoryName"])
	assert.Equal(t, "Fruit", res.Items[0]["subcategoryName"])
}

func TestServiceList_PropagatesUpstreamError(t *testing.T) {
	l := &storeLister{failing: map[string]bool{"": true}}
	svc := newService(l, &staticStores{})

	_, err := svc.List(context.Background(), "v1", domain.ResourceCoupons, Query{Page: 1, Limit: 10})
	assert.Error(t, err)
}

func TestServiceList_SupersededResponseIsStale(t *testing.T) {
	b := &blockingLister{started: make(chan string, 2), release: make(chan struct{})}
	svc := newService(b, &staticStores{})

	before := testutil.ToFloat64(staleResponsesTotal.WithLabelValues("flyers"))

	type outcome struct {
		res *Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := svc.List(context.Background(), "visitor:v-1|flyers", domain.ResourceFlyers, Query{Search: "old", Page: 1, Limit: 10})
		first <- outcome{res, err}
	}()
	require.Equal(t, "old", <-b.started)

	second := make(chan outcome, 1)
	go func() {
		res, err := svc.List(context.Background(), "visitor:v-1|flyers", domain.ResourceFlyers, Query{Search: "new", Page: 1, Limit: 10})
		second <- outcome{res, err}
	}()
	require.Equal(t, "new", <-b.started)

	got := <-first
	assert.ErrorIs(t, got.err, apperrors.ErrStaleRequest)
	assert.Nil(t, got.res)

	close(b.release)
	got = <-second
	require.NoError(t, got.err)
	assert.Equal(t, "new", got.res.Items[0]["id"])

	after := testutil.ToFloat64(staleResponsesTotal.WithLabelValues("flyers"))
	assert.Equal(t, float64(1), after-before)
}

func TestServiceListForRetailer_MergesOwnedStores(t *testing.T) {
	l := &storeLister{counts: map[string]int{"s1": 2, "s2": 1}}
	stores := &staticStores{stores: []domain.Store{{ID: "s1"}, {ID: "s2"}}}
	svc := newService(l, stores)

	res, err := svc.ListForRetailer(context.Background(), "", domain.ResourceFlyers, Query{Page: 1, Limit: 10}, "shop@topprix.re")
	require.NoError(t, err)

	assert.Equal(t, "shop@topprix.re", stores.gotEmail)
	assert.Equal(t, []string{"s1-1", "s1-2", "s2-1"}, ids(res.Items))
	assert.Equal(t, 3, res.Pagination.Total)
}

func TestServiceListForRetailer_NoStores(t *testing.T) {
	l := &storeLister{}
	svc := newService(l, &staticStores{})

	res, err := svc.ListForRetailer(context.Background(), "", domain.ResourceCoupons, Query{Page: 2, Limit: 10}, "new@topprix.re")
	require.NoError(t, err)

	assert.Equal(t, 0, l.requestCount())
	assert.Equal(t, 0, res.Pagination.Total)
	assert.Equal(t, 1, res.Pagination.TotalPages)
	assert.False(t, res.Pagination.HasNextPage)
	assert.False(t, res.Pagination.HasPreviousPage)
}

func TestServiceListForRetailer_RejectsStores(t *testing.T) {
	svc := newService(&storeLister{}, &staticStores{})

	_, err := svc.ListForRetailer(context.Background(), "", domain.ResourceStores, Query{Page: 1, Limit: 10}, "a@b.re")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
