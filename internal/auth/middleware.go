package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// RevocationChecker is consulted on every protected request before a bearer
// token's claims are trusted.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) bool
}

// RequireAuth validates the bearer token and rejects tokens present in the
// revocation ledger, even when their signature and expiry would pass.
func RequireAuth(tm *TokenManager, revocations RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims, err := tm.ValidateAccessToken(tokenString)
			if err != nil {
				unauthorized(w)
				return
			}

			if revocations.IsRevoked(r.Context(), tokenString) {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the validated claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*AccessClaims)
	return claims, ok
}

// BearerToken extracts the raw bearer token from a request, if present.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
