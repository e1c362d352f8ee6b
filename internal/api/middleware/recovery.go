package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/api/models"
)

// Recovery returns a middleware that recovers from panics and returns a 500 error.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					//nolint:errorlint // http.ErrAbortHandler is compared by identity
					if err == http.ErrAbortHandler {
						panic(err)
					}
					requestID := GetRequestID(r.Context())

					log.Error().
						Str("request_id", requestID).
						Interface("error", err).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Str("stack", string(debug.Stack())).
						Msg("panic recovered")

					writeProblem(w, r, models.NewInternalError(requestID, "an unexpected error occurred"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
