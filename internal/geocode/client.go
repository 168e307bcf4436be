// Package geocode turns a postal code and country into coordinates.
package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httpclient"
)

// Doer is implemented by *httpclient.CircuitBreakerClient.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	Name() string
}

// Client queries the external geocoding endpoint.
type Client struct {
	http     Doer
	endpoint string
}

// New creates a geocoding client for endpoint.
func New(endpoint string, doer Doer) *Client {
	return &Client{http: doer, endpoint: endpoint}
}

// coordinate accepts a JSON number or a numeric string.
type coordinate struct {
	value float64
	set   bool
}

func (c *coordinate) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("coordinate %q: %w", s, err)
	}
	c.value, c.set = f, true
	return nil
}

type result struct {
	Lat coordinate `json:"lat"`
	Lon coordinate `json:"lon"`
}

// Lookup resolves zip and country to a location. An unknown code is
// reported as apperrors.ErrNotFound.
func (c *Client) Lookup(ctx context.Context, zip, country string) (domain.Location, error) {
	q := url.Values{"zip": {zip}, "country": {country}}
	target := c.endpoint
	if strings.Contains(target, "?") {
		target += "&" + q.Encode()
	} else {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return domain.Location{}, fmt.Errorf("create geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Location{}, ctxErr
		}
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return domain.Location{}, apperrors.Unavailable("geocoding is temporarily unavailable")
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return domain.Location{}, err
		}
		return domain.Location{}, apperrors.Upstream(c.http.Name(), err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return domain.Location{}, notFound(zip, country)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Location{}, httpclient.ParseResponseError(resp, c.http.Name())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Location{}, apperrors.Upstream(c.http.Name(), fmt.Errorf("read body: %w", err))
	}

	r, ok, err := decode(body)
	if err != nil {
		return domain.Location{}, apperrors.Upstream(c.http.Name(), err)
	}
	if !ok || !r.Lat.set || !r.Lon.set {
		return domain.Location{}, notFound(zip, country)
	}
	return domain.Location{Latitude: r.Lat.value, Longitude: r.Lon.value}, nil
}

// decode accepts a single result object or a list whose first element is
// the best match.
func decode(body []byte) (result, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return result{}, false, nil
	}

	if trimmed[0] == '[' {
		var list []result
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return result{}, false, fmt.Errorf("decode geocode list: %w", err)
		}
		if len(list) == 0 {
			return result{}, false, nil
		}
		return list[0], true, nil
	}

	var r result
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return result{}, false, fmt.Errorf("decode geocode result: %w", err)
	}
	return r, true, nil
}

func notFound(zip, country string) error {
	return apperrors.NotFound("location", zip+"/"+country)
}
