// Package auth implements the connection gate: verification of the
// bearer credential presented at handshake time and resolution of the
// referenced identity from the user store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/incuverse/presence/internal/config"
)

// Identity is the resolved user attached to an authenticated connection.
type Identity struct {
	ID       string
	Username string
	UserType string
}

// UserStore resolves credentials to identities. Implemented by the
// PostgreSQL user repository.
type UserStore interface {
	// ResolveUser returns the identity for the given user ID, or
	// ErrUserNotFound.
	ResolveUser(ctx context.Context, userID string) (Identity, error)
	// TouchLastActive updates the user's last-seen timestamp.
	TouchLastActive(ctx context.Context, userID string) error
}

// ErrUserNotFound is returned when a credential references an unknown user.
var ErrUserNotFound = errors.New("user not found")

// ErrMissingToken is returned when no credential was supplied at handshake.
var ErrMissingToken = errors.New("no token provided")

// ErrInvalidToken is returned for malformed, mis-signed, or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT claim set handshake tokens carry.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Gate authenticates incoming connections before any room operation.
type Gate struct {
	secret  []byte
	issuer  string
	store   UserStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewGate creates a connection gate from the given auth configuration.
//
// Precondition: cfg.JWTSecret must be non-empty; store and logger must be non-nil.
func NewGate(cfg config.AuthConfig, store UserStore, logger *zap.Logger) *Gate {
	return &Gate{
		secret:  []byte(cfg.JWTSecret),
		issuer:  cfg.Issuer,
		store:   store,
		timeout: cfg.ResolveTimeout,
		logger:  logger,
	}
}

// Authenticate verifies the token's signature and expiry, resolves the
// referenced identity, and touches the user's last-active timestamp.
//
// Postcondition: Returns the resolved Identity, or ErrMissingToken /
// ErrInvalidToken / ErrUserNotFound. No room state is mutated on failure.
func (g *Gate) Authenticate(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: missing userId claim", ErrInvalidToken)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	identity, err := g.store.ResolveUser(ctx, claims.UserID)
	if err != nil {
		return Identity{}, err
	}

	// Best effort; a failed touch must not reject the connection.
	if err := g.store.TouchLastActive(ctx, identity.ID); err != nil {
		g.logger.Warn("updating last active",
			zap.String("user_id", identity.ID),
			zap.Error(err),
		)
	}

	return identity, nil
}

// BearerFromRequest extracts the handshake credential from an upgrade
// request: the Authorization header takes precedence, with the "token"
// query parameter as a fallback for browser websocket clients that
// cannot set headers.
func BearerFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

// Sign mints a handshake token for the given user. Used by the probe
// client and tests; production tokens come from the identity service.
//
// Precondition: secret must be non-empty; ttl must be positive.
func Sign(secret, issuer, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
