package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/airadvisor/airadvisor/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// PerMinute returns a limit of n requests per minute.
func PerMinute(n int) RateLimitConfig {
	return RateLimitConfig{RequestLimit: n, WindowLength: time.Minute}
}

// Default rate limit configurations.
var (
	// EstimateRateLimit applies to estimate and advisory endpoints.
	EstimateRateLimit = PerMinute(120)

	// LiveWeatherRateLimit applies to estimates that call the weather provider.
	LiveWeatherRateLimit = PerMinute(30)

	// MetadataRateLimit applies to read-only metadata endpoints.
	MetadataRateLimit = PerMinute(300)

	// AdminRateLimit applies to admin endpoints.
	AdminRateLimit = PerMinute(30)
)

// RateLimitByIP creates a rate limiter middleware using client IP address.
// Uses X-Forwarded-For header if present (extracted by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceededHandler(cfg)),
	)
}

// RateLimitBySubject creates a rate limiter keyed by the authenticated token
// subject, falling back to the client IP for unauthenticated requests.
func RateLimitBySubject(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyBySubjectOrIP),
		httprate.WithLimitHandler(limitExceededHandler(cfg)),
	)
}

func keyBySubjectOrIP(r *http.Request) (string, error) {
	if subject := GetSubject(r.Context()); subject != "" {
		return "sub:" + subject, nil
	}
	return httprate.KeyByRealIP(r)
}

// limitExceededHandler writes an RFC7807 Problem when a limit is hit.
// httprate does not expose the reset time, so Retry-After is the full window.
func limitExceededHandler(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(cfg.WindowLength.Seconds())))

	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		w.Header().Set("Retry-After", retryAfter)
		writeProblem(w, r, problem)
	}
}
