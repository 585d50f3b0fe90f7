package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/internal/auth"
	"github.com/frahmantamala/storefront/pkg/logger"
)

// TokenValidator is satisfied by *auth.Service.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*auth.Claims, error)
}

type claimsKey struct{}

// RequireAdmin rejects requests without a valid admin bearer token.
func RequireAdmin(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeAppError(w, internal.NewUnauthorizedError("missing bearer token", internal.ErrCodeInvalidToken))
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				logger.From(r.Context()).Warn("admin token rejected", "error", err, "path", r.URL.Path)
				if appErr, ok := internal.IsAppError(err); ok {
					writeAppError(w, appErr)
					return
				}
				writeAppError(w, internal.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = internal.ContextWithAdmin(ctx)
			ctx = logger.With(ctx, "admin", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the admin claims set by RequireAdmin.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeAppError(w http.ResponseWriter, appErr *internal.AppError) {
	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
