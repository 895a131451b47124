package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/eventeye/server/internal/api/problem"
	"github.com/eventeye/server/internal/auth"
)

type contextKeyAuth string

const claimsKey contextKeyAuth = "claims"

// RequireAuth validates the bearer token and, when roles are given, checks
// that the token carries one of them. Missing or invalid tokens get 401, a
// valid token with the wrong role gets 403.
func RequireAuth(manager *auth.JWTManager, env string, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", problem.ErrUnauthorized, env)
				return
			}

			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="eventeye"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Missing bearer token", err, env)
				return
			}

			claims, err := manager.Validate(token)
			if err != nil {
				title := "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					title = "Token expired"
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="eventeye", error="invalid_token"`)
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, title, err, env)
				return
			}

			if !auth.HasRole(claims.Role, roles...) {
				problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Insufficient permissions", problem.ErrForbidden, env)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Claims returns the validated token claims of the request, or nil.
func Claims(r *http.Request) *auth.Claims {
	if r == nil {
		return nil
	}
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
