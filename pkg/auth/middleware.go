package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dealsourcer/orgsearch/pkg/httputil"
)

type contextKey string

const userKey contextKey = "auth_user"

// ResolveUser resolves an optional bearer token into the request context.
// Unlike Middleware it never rejects: requests without a valid token pass
// through anonymously. It runs early in the chain so rate limiting can key
// authenticated requests by user instead of client IP.
func ResolveUser(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if found && token != "" {
				if user, err := service.ValidateToken(r.Context(), token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), userKey, user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware guards a route tree with bearer-token authentication. The
// resolved user is stored in the request context.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// ResolveUser may already have validated the token upstream.
			if UserFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				httputil.WriteUnauthorized(w, "missing bearer token")
				return
			}

			user, err := service.ValidateToken(r.Context(), token)
			if errors.Is(err, ErrInvalidToken) {
				httputil.WriteUnauthorized(w, ErrInvalidToken.Error())
				return
			}
			if err != nil {
				httputil.WriteServiceUnavailable(w, "service temporarily unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user set by Middleware, or nil.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userKey).(*User)
	return user
}
