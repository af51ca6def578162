package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Auth guards the admin routes with a static key sent either as
// "Authorization: Bearer <key>" or "X-API-Key: <key>". An empty apiKey
// disables the routes with 403.
func Auth(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch token := adminToken(r); {
			case len(want) == 0:
				writeJSONError(w, http.StatusForbidden, "admin api disabled")
			case token == "":
				writeJSONError(w, http.StatusUnauthorized, "missing admin api key")
			case subtle.ConstantTimeCompare([]byte(token), want) != 1:
				writeJSONError(w, http.StatusUnauthorized, "invalid admin api key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func adminToken(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// writeJSONError sends {"error": msg} with status.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
