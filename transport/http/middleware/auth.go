package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware accepts requests carrying a known X-API-Key header or
// Authorization bearer token
type AuthMiddleware struct {
	keys [][]byte
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(keys ...string) *AuthMiddleware {
	a := &AuthMiddleware{}
	for _, k := range keys {
		a.AddAPIKey(k)
	}
	return a
}

// AddAPIKey adds an allowed API key. Empty keys are ignored.
func (a *AuthMiddleware) AddAPIKey(key string) {
	if key == "" {
		return
	}
	a.keys = append(a.keys, []byte(key))
}

// Enabled reports whether any key is configured
func (a *AuthMiddleware) Enabled() bool {
	return len(a.keys) > 0
}

func (a *AuthMiddleware) valid(candidate string) bool {
	if candidate == "" {
		return false
	}
	c := []byte(candidate)
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare(k, c) == 1 {
			return true
		}
	}
	return false
}

// Middleware returns the HTTP middleware function. Without keys every
// request passes.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.valid(r.Header.Get("X-API-Key")) {
			next.ServeHTTP(w, r)
			return
		}

		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			if a.valid(strings.TrimPrefix(authHeader, "Bearer ")) {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "unauthorized", "message": "valid authentication required"}`))
	})
}
