package backend

import "context"

type tokenKey struct{}

// WithBearerToken returns a context carrying the caller's identity token. The
// client forwards it to the backend on every request made with that context.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// BearerTokenFromContext returns the token set by WithBearerToken.
func BearerTokenFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey{}).(string); ok {
		return t
	}
	return ""
}
