// Package auth implements the authentication gate's identity resolver on
// HMAC-signed JWTs.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parleyhq/parley/internal/core"
	"github.com/parleyhq/parley/internal/domain"
)

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	jwt.RegisteredClaims
}

// TokenResolver verifies a handshake token and resolves its identity.
// When a directory is configured, the subject must exist and be active;
// otherwise the identity is taken from the claims alone.
type TokenResolver struct {
	secret []byte
	dir    core.UserDirectory
}

func NewTokenResolver(secret string, dir core.UserDirectory) *TokenResolver {
	return &TokenResolver{secret: []byte(secret), dir: dir}
}

func (r *TokenResolver) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: no token provided", domain.ErrAuthenticationFailed)
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: token has no subject", domain.ErrAuthenticationFailed)
	}
	uid := domain.UserID(claims.Subject)

	if r.dir != nil {
		acc, err := r.dir.Lookup(ctx, uid)
		if err != nil || !acc.Active {
			return domain.Identity{}, fmt.Errorf("%w: user not found or inactive", domain.ErrAuthenticationFailed)
		}
		return acc.Identity, nil
	}

	identity, err := domain.NewIdentity(uid, claims.Username, claims.DisplayName)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	return identity, nil
}

// Sign issues a token for an identity. Used by management tooling and tests.
func (r *TokenResolver) Sign(identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(identity.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
