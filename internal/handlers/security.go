package handlers

import (
	"net/http"
)

// SecurityHeaders sets the response policy for a JSON-only API: responses are
// never documents, never framed, and order data must not be cached by
// intermediaries.
func (h *Handlers) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
