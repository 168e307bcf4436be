// Package listing assembles the browse pages: it builds backend queries from
// the client's filter state, merges retailer listings across stores and
// drops responses that a newer request from the same view has superseded.
package listing

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/pagination"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/validator"
)

// Query is the filter state of one listing request.
type Query struct {
	Search        string           `query:"search" validate:"max=200"`
	CategoryID    string           `query:"categoryId" validate:"max=100"`
	SubcategoryID string           `query:"subcategoryId" validate:"max=100"`
	MinDiscount   *decimal.Decimal `query:"minDiscount" validate:"omitempty,gte=0,lte=100"`
	MaxPrice      *decimal.Decimal `query:"maxPrice" validate:"omitempty,gte=0"`
	IsAvailable   *bool            `query:"isAvailable"`
	SortBy        string           `query:"sortBy" validate:"omitempty,max=50"`
	SortOrder     string           `query:"sortOrder" validate:"omitempty,oneof=asc desc all"`
	StoreID       string           `query:"storeId" validate:"max=100"`
	Page          int              `query:"page" validate:"min=1"`
	Limit         int              `query:"limit" validate:"oneof=10 20 50"`
}

// ParseQuery reads a Query from URL parameters. Page and limit default to 1
// and pagination.DefaultLimit. Values that do not parse are rejected; range
// checks are left to Validate.
func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Search:        strings.TrimSpace(v.Get("search")),
		CategoryID:    v.Get("categoryId"),
		SubcategoryID: v.Get("subcategoryId"),
		SortBy:        v.Get("sortBy"),
		SortOrder:     v.Get("sortOrder"),
		StoreID:       v.Get("storeId"),
	}

	page, err := pagination.FromValues(v)
	if err != nil {
		return Query{}, err
	}
	q.Page, q.Limit = page.Page, page.Limit

	if q.MinDiscount, err = parseDecimal(v, "minDiscount"); err != nil {
		return Query{}, err
	}
	if q.MaxPrice, err = parseDecimal(v, "maxPrice"); err != nil {
		return Query{}, err
	}
	if s := v.Get("isAvailable"); s != "" && s != domain.AllSentinel {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Query{}, apperrors.InvalidInput("isAvailable must be true or false")
		}
		q.IsAvailable = &b
	}
	return q, nil
}

func parseDecimal(v url.Values, key string) (*decimal.Decimal, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%s must be a number", key))
	}
	return &d, nil
}

// Validate checks the client-facing constraints on q.
func (q Query) Validate() error {
	return validator.Validate(q)
}

// Params returns the requested page.
func (q Query) Params() pagination.Params {
	return pagination.Params{Page: q.Page, Limit: q.Limit}
}

// Values serializes q for the backend. A filter is sent only when it is set
// and not the "all" sentinel; page and limit are always sent.
func (q Query) Values() url.Values {
	v := url.Values{}
	setString(v, "search", q.Search)
	setString(v, "categoryId", q.CategoryID)
	setString(v, "subcategoryId", q.SubcategoryID)
	setString(v, "sortBy", q.SortBy)
	setString(v, "sortOrder", q.SortOrder)
	setString(v, "storeId", q.StoreID)
	if q.MinDiscount != nil {
		v.Set("minDiscount", q.MinDiscount.String())
	}
	if q.MaxPrice != nil {
		v.Set("maxPrice", q.MaxPrice.String())
	}
	if q.IsAvailable != nil {
		v.Set("isAvailable", strconv.FormatBool(*q.IsAvailable))
	}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	return v
}

func setString(v url.Values, key, value string) {
	if value == "" || value == domain.AllSentinel {
		return
	}
	v.Set(key, value)
}
