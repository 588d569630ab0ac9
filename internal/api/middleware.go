// Package api implements the HTTP API of the local notes service using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerRealm = `Bearer realm="notehub"`

// AuthMiddleware guards the notes routes with the configured bearer token,
// the same header the gateway sends when a token is set. When enabled is
// false every request passes, as for a service that takes anonymous calls.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				w.Header().Set("WWW-Authenticate", bearerRealm)
				writeJSON(w, http.StatusUnauthorized, errorBody("missing or invalid bearer token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
