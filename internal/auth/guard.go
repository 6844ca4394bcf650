package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/clipshare/backend/internal/apperr"
	"github.com/clipshare/backend/internal/models"
)

// Cookie names carrying the issued tokens.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type identityKey struct{}

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (models.Identity, error)
}

// ErrorWriter renders an authentication failure to the client.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Guard resolves the caller identity of protected requests. It trusts the
// access token alone and never consults the store.
type Guard struct {
	tokens AccessVerifier
}

// NewGuard constructs a Guard backed by the provided verifier.
func NewGuard(tokens AccessVerifier) *Guard {
	if tokens == nil {
		panic("auth: access verifier must not be nil")
	}
	return &Guard{tokens: tokens}
}

// Authenticate extracts and verifies the access token of r.
func (g *Guard) Authenticate(r *http.Request) (models.Identity, error) {
	raw := AccessTokenFromRequest(r)
	if raw == "" {
		return models.Identity{}, apperr.Unauthorized("no credential")
	}

	identity, err := g.tokens.VerifyAccess(raw)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return models.Identity{}, apperr.Unauthorized("expired")
	case err != nil:
		return models.Identity{}, apperr.Unauthorized("invalid token")
	}
	return identity, nil
}

// Require rejects unauthenticated requests through onError and otherwise
// forwards them with the identity stored on the context.
func (g *Guard) Require(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := g.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// AccessTokenFromRequest prefers an Authorization bearer header and falls
// back to the access cookie.
func AccessTokenFromRequest(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if cookie, err := r.Cookie(AccessCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// WithIdentity stores the caller identity on the context.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by Require.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(models.Identity)
	return identity, ok && identity.AccountID != ""
}
