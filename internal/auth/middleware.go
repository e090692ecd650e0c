// internal/auth/middleware.go
package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const OperatorKey contextKey = "operator"

func JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		claims, err := ValidateToken(tokenStr)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Inject operator identity into context
		ctx := context.WithValue(r.Context(), OperatorKey, claims.Operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOperator extracts the operator identity from context
func GetOperator(r *http.Request) string {
	if val := r.Context().Value(OperatorKey); val != nil {
		return val.(string)
	}
	return ""
}
