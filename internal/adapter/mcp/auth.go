package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware validates the configured API key on every request,
// accepting either "Authorization: Bearer <key>" or "X-API-Key: <key>".
// An empty key disables the check entirely.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-API-Key")
		if token == "" {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing credentials", http.StatusUnauthorized)
				return
			}
			token = strings.TrimPrefix(auth, "Bearer ")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
