package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"exam-attempt-service/internal/backend"
)

type identityKey struct{}

// Authenticate requires a bearer token in the Authorization header or, for
// browser websockets that cannot set headers, the token query parameter.
// The raw token is forwarded to the backend on every call made for the request.
func Authenticate(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if raw == "" {
				raw = r.URL.Query().Get("token")
			}
			info, err := backend.Inspect(raw, now())
			if err != nil {
				writeError(w, err)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
			ctx := backend.WithToken(r.Context(), token)
			ctx = context.WithValue(ctx, identityKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the token claims stored by Authenticate.
func IdentityFrom(ctx context.Context) (backend.TokenInfo, error) {
	info, ok := ctx.Value(identityKey{}).(backend.TokenInfo)
	if !ok {
		return backend.TokenInfo{}, errors.New("no identity in context")
	}
	return info, nil
}
