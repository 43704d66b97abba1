/**
 * @description
 * Custom middleware for the HTTP routers. Internal endpoints (the mirror
 * write) are protected by a shared API key header so only peer services can
 * reach them; there is no end-user authentication surface in this backend.
 */

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const internalAPIKeyHeader = "X-Internal-API-Key"

// InternalAPIKeyMiddleware rejects requests that do not carry the shared
// internal API key. An empty configured key disables the check (local
// development), which is logged at startup by the caller.
func InternalAPIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	expected := strings.TrimSpace(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected != "" {
				provided := strings.TrimSpace(r.Header.Get(internalAPIKeyHeader))
				if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
					writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "invalid internal api key"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
