// Package session turns bearer ID tokens into per-request sessions: it
// verifies the token, resolves the caller's backend account and role, and
// exposes the result to handlers through the request context.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/abhishek-Rj/Topprix-sub001/internal/domain"
)

// ErrNoSubject is returned for a token that verifies but names no subject.
var ErrNoSubject = errors.New("token has no subject")

// Verifier checks a raw bearer token and returns the identity it carries.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*domain.Principal, error)
}

type identityClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// OIDCVerifier verifies ID tokens issued by a hosted identity provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers issuer's signing keys and returns a verifier
// for tokens minted for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover identity provider %s: %w", issuer, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewOIDCVerifierWithKeySet builds a verifier over a fixed key set, skipping
// discovery.
func NewOIDCVerifierWithKeySet(issuer, clientID string, keys oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: clientID})}
}

// Verify implements Verifier.
func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*domain.Principal, error) {
	tok, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if tok.Subject == "" {
		return nil, ErrNoSubject
	}

	var claims identityClaims
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}
	return &domain.Principal{ID: tok.Subject, Email: claims.Email, EmailVerified: claims.EmailVerified}, nil
}

type hmacClaims struct {
	identityClaims
	jwt.RegisteredClaims
}

// HMACVerifier verifies HS256 tokens signed with a shared secret. It exists
// for local development against a fake identity provider.
type HMACVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier creates an HMAC verifier. An empty issuer accepts any.
func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(_ context.Context, raw string) (*domain.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims hmacClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}
	return &domain.Principal{ID: claims.Subject, Email: claims.Email, EmailVerified: claims.EmailVerified}, nil
}
