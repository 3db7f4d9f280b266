// Package auth verifies session tokens issued by the identity provider (Clerk).
//
// Sessions are created and refreshed by the provider's frontend SDK. The API only
// checks the short-lived session JWT that the browser sends with each request:
//   - Signed RS256 with the instance key (the PEM public key from the dashboard)
//   - sub is the user id used as the user store key
//   - exp is required; nbf and iat are honoured with a small leeway
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClockSkew is tolerated between the provider and this server.
const ClockSkew = 5 * time.Second

// Session token errors.
var (
	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrSessionTokenExpired = errors.New("session token has expired")
	ErrMissingKey          = errors.New("session verification key is not configured")
)

// SessionClaims are the claims of a provider session token.
type SessionClaims struct {
	jwt.RegisteredClaims

	// SessionID is the provider session id.
	SessionID string `json:"sid,omitempty"`

	// AuthorizedParty is the origin the token was issued for.
	AuthorizedParty string `json:"azp,omitempty"`
}

// SessionConfig holds configuration for the session verifier.
type SessionConfig struct {
	// PublicKeyPEM is the PEM encoded RSA public key of the instance.
	PublicKeyPEM string

	// Issuer is the expected iss claim (optional).
	Issuer string
}

// SessionVerifier validates session tokens.
type SessionVerifier struct {
	key    *rsa.PublicKey
	issuer string
}

// NewSessionVerifier creates a new SessionVerifier.
func NewSessionVerifier(cfg SessionConfig) (*SessionVerifier, error) {
	if cfg.PublicKeyPEM == "" {
		return nil, ErrMissingKey
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse session public key: %w", err)
	}
	return &SessionVerifier{key: key, issuer: cfg.Issuer}, nil
}

// Verify validates a session token and returns its claims.
func (v *SessionVerifier) Verify(tokenString string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(ClockSkew),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidSessionToken, err.Error())
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}

// UserID validates a session token and returns the user id.
func (v *SessionVerifier) UserID(tokenString string) (string, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
