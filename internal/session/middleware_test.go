package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/abhishek-Rj/Topprix-sub001/internal/backend"
	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
)

type stubVerifier struct {
	principal *domain.Principal
	err       error
	gotToken  string
}

func (s *stubVerifier) Verify(_ context.Context, raw string) (*domain.Principal, error) {
	s.gotToken = raw
	return s.principal, s.err
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body.Error.Code
}

func TestMiddleware_NoHeaderIsAnonymous(t *testing.T) {
	v := &stubVerifier{}
	mw := Middleware(v, NewResolver(new(mockBackend), time.Minute, discardLogger()), discardLogger())

	var got domain.Session
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	rr := serve(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/flyers", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, got.Anonymous())
	assert.True(t, got.Resolved)
	assert.Empty(t, v.gotToken)
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	tests := []struct {
		name   string
		header string
		err    error
	}{
		{"wrong scheme", "Basic abc", nil},
		{"empty token", "Bearer ", nil},
		{"invalid token", "Bearer bad", errors.New("signature invalid")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &stubVerifier{err: tt.err, principal: principal()}
			mw := Middleware(v, NewResolver(new(mockBackend), time.Minute, discardLogger()), discardLogger())
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
			req.Header.Set("Authorization", tt.header)
			rr := serve(t, h, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, rr))
		})
	}
}

func TestMiddleware_ResolvesAndForwardsToken(t *testing.T) {
	b := new(mockBackend)
	b.On("UserIDByEmail", mock.Anything, "marie@topprix.re").Return("u-1", nil)
	b.On("Profile", mock.Anything, "u-1").Return(&domain.Profile{Role: "USER"}, nil)

	v := &stubVerifier{principal: principal()}
	mw := Middleware(v, NewResolver(b, time.Minute, discardLogger()), discardLogger())

	var (
		got      domain.Session
		token    string
		loggedID string
	)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		token = backend.BearerTokenFromContext(r.Context())
		loggedID = logger.UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("Authorization", "Bearer tok-abc")
	rr := serve(t, h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "tok-abc", v.gotToken)
	assert.Equal(t, "tok-abc", token)
	assert.Equal(t, "uid-42", loggedID)
	require.NotNil(t, got.Role)
	assert.Equal(t, domain.RoleUser, *got.Role)
}

func TestRequireRole(t *testing.T) {
	retailer := domain.RoleRetailer
	user := domain.RoleUser

	tests := []struct {
		name    string
		session domain.Session
		want    int
	}{
		{"anonymous", domain.AnonymousSession(), http.StatusUnauthorized},
		{"unresolved", domain.Session{Identity: principal()}, http.StatusForbidden},
		{"wrong role", domain.Session{Identity: principal(), Role: &user, Resolved: true}, http.StatusForbidden},
		{"allowed", domain.Session{Identity: principal(), Role: &retailer, Resolved: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole(discardLogger(), domain.RoleRetailer, domain.RoleAdmin)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
			)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/retailer/flyers", nil)
			req = req.WithContext(NewContext(req.Context(), tt.session))
			rr := serve(t, h, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consent/evaluate", nil)
	assert.Empty(t, Key(req))

	req.Header.Set("X-Visitor-ID", "v-9")
	assert.Equal(t, "visitor:v-9", Key(req))

	req = req.WithContext(NewContext(req.Context(), domain.Session{Identity: principal()}))
	assert.Equal(t, "user:uid-42", Key(req))
}
