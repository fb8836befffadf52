package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/chefguard/internal/models"
	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ClaimsContextKey is the key for storing caller claims in context
	ClaimsContextKey contextKey = "function_claims"
)

// RequireFunctionToken rejects requests without a valid bearer token.
// The token is read from Authorization and, failing that, the apikey header.
// A nil verifier disables the check.
func RequireFunctionToken(verifier *FunctionTokenVerifier, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := bearerToken(r)
			if tokenString == "" {
				pkghttp.WriteUnauthorized(w, "Missing authorization header")
				return
			}

			claims, err := verifier.ValidateToken(tokenString)
			if err != nil {
				logger.Debug("function token rejected", slog.Any("error", err))
				pkghttp.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("apikey"))
}

// GetClaimsFromContext retrieves caller claims from context
func GetClaimsFromContext(ctx context.Context) *models.FunctionClaims {
	claims, ok := ctx.Value(ClaimsContextKey).(*models.FunctionClaims)
	if !ok {
		return nil
	}
	return claims
}
