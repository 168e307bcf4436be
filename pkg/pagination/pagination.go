package pagination

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
)

// DefaultLimit is used when a request does not carry a limit.
const DefaultLimit = 10

// Params holds the page and page size of a listing request.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// DefaultParams returns page 1 with the default limit.
func DefaultParams() Params {
	return Params{Page: 1, Limit: DefaultLimit}
}

// Offset returns the zero-based index of the first item on the page.
func (p Params) Offset() int {
	if p.Page < 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// FromValues reads page and limit from URL parameters, defaulting absent
// ones. A value that is not an integer is an invalid-input error; range
// checks are left to validation.
func FromValues(v url.Values) (Params, error) {
	p := DefaultParams()
	for _, f := range []struct {
		key string
		dst *int
	}{{"page", &p.Page}, {"limit", &p.Limit}} {
		s := strings.TrimSpace(v.Get(f.key))
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return Params{}, apperrors.InvalidInput(f.key + " must be an integer")
		}
		*f.dst = n
	}
	return p, nil
}

// Envelope is the canonical pagination shape returned to clients regardless
// of which dialect the upstream endpoint speaks.
type Envelope struct {
	Total           int  `json:"total"`
	Limit           int  `json:"limit"`
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// Compute builds an envelope from a total count and the requested page.
//
// totalPages is ceil(total/limit) but never below 1, so an empty result still
// reports a single (empty) page.
func Compute(total int, p Params) Envelope {
	if total < 0 {
		total = 0
	}
	page := p.Page
	if page < 1 {
		page = 1
	}

	totalPages := 1
	if p.Limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
		if totalPages < 1 {
			totalPages = 1
		}
	}

	return Envelope{
		Total:           total,
		Limit:           p.Limit,
		CurrentPage:     page,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// Empty is the envelope of a result set with no items.
func Empty(p Params) Envelope {
	return Compute(0, p)
}

// Key precedence for each canonical field. The first key present wins.
// Backend endpoints disagree on naming; extend these lists when a new
// dialect shows up instead of touching call sites.
var (
	totalKeys = []string{"total", "totalCount", "totalItems", "count"}
	limitKeys = []string{"limit", "itemsPerPage"}
	pageKeys  = []string{"page", "currentPage"}

	totalPagesKeys = []string{"totalPages"}
)

// Normalize converts a raw pagination object in any supported dialect into
// the canonical envelope. Values the upstream reports are kept. A missing
// limit or page falls back to the requested params, and a missing
// totalPages, hasNextPage or hasPreviousPage is derived from total, limit
// and page. Reported totalPages is never taken below 1.
//
// Normalize is idempotent: Normalize(AsMap(Normalize(raw, p)), p) equals
// Normalize(raw, p).
func Normalize(raw map[string]any, fallback Params) Envelope {
	total, _ := firstInt(raw, totalKeys)

	limit, ok := firstInt(raw, limitKeys)
	if !ok || limit <= 0 {
		limit = fallback.Limit
	}

	page, ok := firstInt(raw, pageKeys)
	if !ok {
		page = fallback.Page
	}

	env := Compute(total, Params{Page: page, Limit: limit})
	if n, ok := firstInt(raw, totalPagesKeys); ok {
		env.TotalPages = max(n, 1)
		env.HasNextPage = env.CurrentPage < env.TotalPages
	}
	if b, ok := firstBool(raw, "hasNextPage"); ok {
		env.HasNextPage = b
	}
	if b, ok := firstBool(raw, "hasPreviousPage"); ok {
		env.HasPreviousPage = b
	}
	return env
}

// NormalizeJSON is Normalize over an undecoded JSON object. A body that is
// not an object is treated as an empty one.
func NormalizeJSON(data json.RawMessage, fallback Params) Envelope {
	raw := map[string]any{}
	if len(data) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			raw = map[string]any{}
		}
	}
	return Normalize(raw, fallback)
}

// AsMap renders the envelope with its canonical keys, the form Normalize
// accepts as input.
func (e Envelope) AsMap() map[string]any {
	return map[string]any{
		"total":           e.Total,
		"limit":           e.Limit,
		"currentPage":     e.CurrentPage,
		"totalPages":      e.TotalPages,
		"hasNextPage":     e.HasNextPage,
		"hasPreviousPage": e.HasPreviousPage,
	}
}

// Slice returns the items of page p out of an already concatenated list.
func Slice[T any](items []T, p Params) []T {
	start := p.Offset()
	if p.Limit <= 0 || start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func firstInt(raw map[string]any, keys []string) (int, bool) {
	for _, k := range keys {
		v, present := raw[k]
		if !present || v == nil {
			continue
		}
		if n, ok := toInt(v); ok {
			return n, true
		}
	}
	return 0, false
}

func firstBool(raw map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		switch b := raw[k].(type) {
		case bool:
			return b, true
		case string:
			if v, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
				return v, true
			}
		}
	}
	return false, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
