package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"catalog-api/internal/policy"
	"catalog-api/internal/token"
)

type contextKey struct{}

var claimsKey contextKey

// ClaimsFromContext returns the claims stored by Middleware for the current
// request.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*token.Claims)
	return claims, ok
}

// Middleware validates the bearer token and parks its claims in the request
// context. Expired tokens are rejected here; only the refresh endpoint
// accepts them, and it does not sit behind this middleware.
func Middleware(codec *token.Codec, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims, err := codec.Decode(strings.TrimSpace(parts[1]), false)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// RequirePolicy gates a handler behind a named policy. It must run inside
// Middleware; a request without claims in context is unauthorized, a claim
// set that fails the policy is forbidden.
func RequirePolicy(registry *policy.Registry, name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		allowed, err := registry.Evaluate(name, claims)
		if err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "policy evaluation failed")
			return
		}
		if !allowed {
			writeError(w, http.StatusForbidden, "not authorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
