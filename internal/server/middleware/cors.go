package middleware

import (
	"net/http"
	"strings"
)

var corsBaseHeaders = []string{"Content-Type", "Authorization", "X-API-Key"}

// CORS returns middleware that answers preflights and tags responses for the
// allowed origins. An empty list or "*" allows any origin. identityHeaders
// are added to the allowed request headers so browsers may forward them.
func CORS(allowedOrigins []string, identityHeaders ...string) func(http.Handler) http.Handler {
	anyOrigin := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.ToLower(strings.TrimRight(o, "/"))
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = true
	}

	headers := append([]string(nil), corsBaseHeaders...)
	for _, h := range identityHeaders {
		if h != "" {
			headers = append(headers, h)
		}
	}
	allowHeaders := strings.Join(headers, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				w.Header().Add("Vary", "Origin")
				if anyOrigin || allowed[strings.ToLower(origin)] {
					h := w.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					h.Set("Access-Control-Allow-Headers", allowHeaders)
					h.Set("Access-Control-Max-Age", "86400")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
