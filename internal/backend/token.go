package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exam-attempt-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx for backend calls.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx, if any.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// TokenInfo is what the gateway reads out of a token without verifying it.
// The backend owns the signing key and remains the authority.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Inspect decodes the token's registered claims and rejects expired tokens.
func Inspect(token string, now time.Time) (TokenInfo, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return TokenInfo{}, domain.ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		if !info.ExpiresAt.After(now) {
			return TokenInfo{}, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
		}
	}
	if info.Subject == "" {
		return TokenInfo{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	return info, nil
}
