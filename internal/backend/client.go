// Package backend is the REST client for the marketplace backend. It owns
// the quirks of the backend's response shapes so the rest of the BFF only
// sees domain types and the canonical pagination envelope.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httpclient"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/pagination"
	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
)

// maxBodyBytes caps how much of a backend response is read.
const maxBodyBytes = 8 << 20

// Doer is implemented by *httpclient.CircuitBreakerClient.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	Name() string
}

// Client talks to the marketplace REST backend.
type Client struct {
	http    Doer
	baseURL string
	logger  *slog.Logger
}

// New creates a backend client rooted at baseURL.
func New(baseURL string, doer Doer, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// List fetches one page of resource. Results are read from the resource's
// items key and pagination from "pagination", "meta" or the top level, in
// that order, then normalized against fallback. A body without the items
// key yields an empty page rather than an error.
func (c *Client) List(ctx context.Context, resource domain.Resource, query url.Values, fallback pagination.Params) (*domain.ListPage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, resource.Path(), query, &raw); err != nil {
		return nil, err
	}
	return decodeListPage(raw, resource.ItemsKey(), fallback, c.logger.With(slog.String("resource", string(resource)))), nil
}

func decodeListPage(raw json.RawMessage, itemsKey string, fallback pagination.Params, logger *slog.Logger) *domain.ListPage {
	trimmed := bytes.TrimSpace(raw)

	// Some endpoints answer with a bare array.
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []domain.Item
		if err := decodeNumbers(trimmed, &items); err != nil {
			logger.Warn("malformed listing array, treating as empty", slog.String("error", err.Error()))
			items = nil
		}
		return &domain.ListPage{
			Items:      nonNil(items),
			Pagination: pagination.Compute(len(items), pagination.Params{Page: 1, Limit: max(len(items), fallback.Limit)}),
		}
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &body); err != nil {
		logger.Warn("malformed listing body, treating as empty", slog.String("error", err.Error()))
		return &domain.ListPage{Items: []domain.Item{}, Pagination: pagination.Empty(fallback)}
	}

	var items []domain.Item
	if rawItems, ok := body[itemsKey]; ok {
		if err := decodeNumbers(rawItems, &items); err != nil {
			logger.Warn("malformed listing items, treating as empty",
				slog.String("key", itemsKey),
				slog.String("error", err.Error()),
			)
			items = nil
		}
	}

	env := pagination.NormalizeJSON(trimmed, fallback)
	for _, key := range []string{"pagination", "meta"} {
		if p, ok := body[key]; ok && isObject(p) {
			env = pagination.NormalizeJSON(p, fallback)
			break
		}
	}

	return &domain.ListPage{Items: nonNil(items), Pagination: env}
}

// Categories fetches the category tree. A body without "categories" is an
// empty tree.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var body struct {
		Categories []domain.Category `json:"categories"`
	}
	if err := c.getJSON(ctx, "/categories", nil, &body); err != nil {
		return nil, err
	}
	if body.Categories == nil {
		return []domain.Category{}, nil
	}
	return body.Categories, nil
}

// UserIDByEmail resolves the backend user id of the account registered with
// email. The backend answers either {"user": {"id": ...}} or {"id": ...}.
func (c *Client) UserIDByEmail(ctx context.Context, email string) (string, error) {
	var body struct {
		ID   json.RawMessage `json:"id"`
		User *struct {
			ID json.RawMessage `json:"id"`
		} `json:"user"`
	}
	if err := c.getJSON(ctx, "/users/by-email", url.Values{"email": {email}}, &body); err != nil {
		return "", err
	}
	if body.User != nil {
		return idString(body.User.ID), nil
	}
	return idString(body.ID), nil
}

// StoresByOwner lists the stores owned by a backend user.
func (c *Client) StoresByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Store, error) {
	q := url.Values{
		"ownerId": {ownerID},
		"limit":   {strconv.Itoa(limit)},
		"page":    {"1"},
	}
	var body struct {
		Stores []domain.Store `json:"stores"`
	}
	if err := c.getJSON(ctx, "/stores", q, &body); err != nil {
		return nil, err
	}

	// The filter is applied server side; the check here guards against a
	// backend that ignores unknown parameters.
	owned := make([]domain.Store, 0, len(body.Stores))
	for _, s := range body.Stores {
		if s.OwnerID == "" || s.OwnerID == ownerID {
			owned = append(owned, s)
		}
	}
	return owned, nil
}

// Profile reads the profile document of a backend user. Both a bare profile
// and one wrapped under "profile" or "user" are accepted.
func (c *Client) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	var body map[string]json.RawMessage
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(userID)+"/profile", nil, &body); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("re-encode profile: %w", err)
	}
	for _, key := range []string{"profile", "user"} {
		if inner, ok := body[key]; ok && isObject(inner) {
			raw = inner
			break
		}
	}

	var p domain.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Upstream(c.http.Name(), fmt.Errorf("decode profile: %w", err))
	}
	if p.ID == "" {
		p.ID = userID
	}
	return &p, nil
}

// UpdateLocation patches the location fields of a user's profile.
func (c *Client) UpdateLocation(ctx context.Context, userID string, update domain.LocationUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal location update: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, "/users/"+url.PathEscape(userID)+"/location", nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Ping checks that the backend host accepts TCP connections.
func (c *Client) Ping(ctx context.Context) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse backend URL: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	d := net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	_ = conn.Close()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.Upstream(c.http.Name(), fmt.Errorf("read %s: %w", path, err))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := decodeNumbers(body, dst); err != nil {
		return apperrors.Upstream(c.http.Name(), fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if token := BearerTokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends req and turns transport failures and non-2xx answers into
// AppErrors. Context cancellation is returned unchanged so callers can tell
// an aborted request from a failed one.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return nil, apperrors.Unavailable(c.http.Name() + " is temporarily unavailable")
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.Upstream(c.http.Name(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, httpclient.ParseResponseError(resp, c.http.Name())
	}
	return resp, nil
}

func decodeNumbers(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// idString accepts ids encoded as JSON strings or numbers.
func idString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(trimmed, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := decodeNumbers(trimmed, &n); err == nil {
		return n.String()
	}
	return ""
}

func nonNil(items []domain.Item) []domain.Item {
	if items == nil {
		return []domain.Item{}
	}
	return items
}
