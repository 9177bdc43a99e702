package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/petcare-labs/clinibook/libs/auth"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/booking"
)

type ctxKey int

const actorKey ctxKey = iota

// RequireAuth verifies the bearer token and stashes the acting principal in
// the request context. Tokens are HS256-signed by the clinic's identity
// provider; only client and staff roles pass.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
				http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			claims, err := auth.ParseAndVerifyHS256(token, secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.Role != auth.RoleClient && claims.Role != auth.RoleStaff {
				http.Error(w, "unknown role", http.StatusForbidden)
				return
			}

			actor := booking.Actor{ID: claims.Sub, Role: claims.Role, Name: claims.Name}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

func actorFrom(r *http.Request) (booking.Actor, bool) {
	actor, ok := r.Context().Value(actorKey).(booking.Actor)
	return actor, ok
}
