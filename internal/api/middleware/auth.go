package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/syntaxsurfers/smartcity/internal/api/models"
	"github.com/syntaxsurfers/smartcity/internal/auth"
)

// SessionCookie is where the identity provider's frontend SDK keeps the
// session token for same-site requests.
const SessionCookie = "__session"

type userIDKey struct{}

// TokenVerifier resolves a session token to a user ID.
// *auth.SessionVerifier satisfies this interface.
type TokenVerifier interface {
	UserID(token string) (string, error)
}

// Auth rejects requests without a valid session token with a 401 problem.
// The token is taken from a bearer Authorization header, or from the session
// cookie when no header is sent. A bad header is not retried with the cookie.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, detail := authenticate(verifier, r)
			if userID == "" {
				models.NewUnauthorized(GetRequestID(r.Context()), detail).
					WithInstance(r.URL.Path).
					Write(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth attaches the user ID when the request carries a valid session
// token. Anonymous and badly authenticated requests pass through unchanged so
// public panels still render.
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, _ := authenticate(verifier, r); userID != "" {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate returns the user ID, or an empty ID and the reason for the 401.
func authenticate(verifier TokenVerifier, r *http.Request) (userID, detail string) {
	token, detail := sessionToken(r)
	if token == "" {
		return "", detail
	}

	userID, err := verifier.UserID(token)
	switch {
	case err == nil:
		return userID, ""
	case errors.Is(err, auth.ErrSessionTokenExpired):
		return "", "session token has expired"
	case errors.Is(err, auth.ErrInvalidSessionToken):
		return "", "invalid session token"
	default:
		return "", "authentication failed"
	}
}

func sessionToken(r *http.Request) (token, detail string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
			return c.Value, ""
		}
		return "", "missing authorization header"
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the authenticated user ID, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
