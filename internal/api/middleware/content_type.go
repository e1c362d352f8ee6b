package middleware

import (
	"mime"
	"net/http"

	"github.com/airadvisor/airadvisor/internal/api/models"
)

// ContentTypeJSON sets the Content-Type header to application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only set if not already set (allows handlers to override)
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireContentType rejects POST, PUT, and PATCH requests whose body is not
// one of the allowed media types. Requests without a Content-Type pass.
func RequireContentType(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				next.ServeHTTP(w, r)
				return
			}
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err == nil {
				for _, a := range allowed {
					if mediaType == a {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			writeProblem(w, r, models.NewUnsupportedMediaType(GetRequestID(r.Context()),
				"Content-Type "+contentType+" is not accepted here"))
		})
	}
}

// RequireJSON accepts only application/json bodies.
var RequireJSON = RequireContentType("application/json")

// RequireForm accepts URL-encoded and multipart form bodies.
var RequireForm = RequireContentType("application/x-www-form-urlencoded", "multipart/form-data")
