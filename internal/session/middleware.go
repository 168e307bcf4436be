package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/abhishek-Rj/Topprix-sub001/internal/backend"
	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httputil"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/logger"
	pkgmw "github.com/abhishek-Rj/Topprix-sub001/pkg/middleware"
)

type contextKey struct{}

// NewContext returns a context carrying s.
func NewContext(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by Middleware. Requests that did
// not pass through it are anonymous.
func FromContext(ctx context.Context) domain.Session {
	if s, ok := ctx.Value(contextKey{}).(domain.Session); ok {
		return s
	}
	return domain.AnonymousSession()
}

// Middleware resolves the session of every request. A request without an
// Authorization header is anonymous; a header carrying an invalid token is
// rejected with 401.
func Middleware(v Verifier, r *Resolver, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			header := req.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, req.WithContext(NewContext(req.Context(), domain.AnonymousSession())))
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				httputil.WriteError(w, req, apperrors.Unauthorized("invalid authorization header format"), l)
				return
			}

			ctx := req.Context()
			principal, err := v.Verify(ctx, token)
			if err != nil {
				logger.WithContext(ctx, l).WarnContext(ctx, "invalid identity token",
					slog.String("path", req.URL.Path),
					slog.String("error", err.Error()),
				)
				httputil.WriteError(w, req, apperrors.Unauthorized("invalid or expired token"), l)
				return
			}

			ctx = logger.WithUserID(ctx, principal.ID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", principal.ID)))
			ctx = backend.WithBearerToken(ctx, token)

			sess := r.Resolve(ctx, principal)
			next.ServeHTTP(w, req.WithContext(NewContext(ctx, sess)))
		})
	}
}

// RequireRole rejects requests whose session has not resolved to one of
// roles: anonymous callers get 401, everyone else 403.
func RequireRole(l *slog.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := FromContext(r.Context())
			if s.Anonymous() {
				httputil.WriteError(w, r, apperrors.Unauthorized("sign in required"), l)
				return
			}
			if !s.HasRole(roles...) {
				httputil.WriteError(w, r, apperrors.Forbidden("insufficient role"), l)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Key identifies the caller for per-session state: the principal for
// signed-in users, the X-Visitor-ID header for anonymous visitors. It is
// empty for an anonymous request without a visitor id.
func Key(r *http.Request) string {
	s := FromContext(r.Context())
	if !s.Anonymous() {
		return "user:" + s.Identity.ID
	}
	if v := strings.TrimSpace(r.Header.Get(pkgmw.HeaderVisitorID)); v != "" {
		return "visitor:" + v
	}
	return ""
}
