package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/securevote-api/internal/domain"
	jwtinfra "github.com/securevote-api/internal/infrastructure/jwt"
)

type contextKey string

const (
	claimsKey  contextKey = "claims"
	sessionKey contextKey = "session"
)

type tokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type sessionLoader interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Auth validates the Bearer JWT, loads the server-side session it names and
// injects both into the request context.
func Auth(verifier tokenVerifier, sessions sessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			sess, err := sessions.Get(r.Context(), claims.SessionID)
			if err != nil || sess.Role != claims.Role {
				writeJSONError(w, http.StatusUnauthorized, "session expired")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}

// SessionFromContext returns the session loaded by Auth.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.Session)
	return s, ok
}

// WithSession is used by handler tests to bypass Auth.
func WithSession(ctx context.Context, claims *jwtinfra.Claims, sess *domain.Session) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, sessionKey, sess)
}
