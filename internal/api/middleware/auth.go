package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/airadvisor/airadvisor/internal/api/models"
	"github.com/airadvisor/airadvisor/internal/auth"
)

// claimsKey is the context key for validated token claims.
type claimsKey struct{}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Auth creates authentication middleware that validates JWT bearer tokens.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "missing authorization header"))
				return
			}

			// Check for Bearer prefix (case-insensitive)
			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "invalid authorization header format"))
				return
			}

			tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
			if tokenString == "" {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "missing bearer token"))
				return
			}

			claims, err := validator.ValidateAccessToken(tokenString)
			if err != nil {
				detail := "authentication failed"
				switch {
				case errors.Is(err, auth.ErrAccessTokenExpired):
					detail = "access token has expired"
				case errors.Is(err, auth.ErrInvalidAccessToken):
					detail = "invalid access token"
				}
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), detail))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose token lacks role. It must
// run after Auth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "authentication required"))
				return
			}
			if claims.Role != role {
				writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), role+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeProblem writes p for r. It lives here rather than in the response
// package, which imports middleware.
func writeProblem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}

// GetClaims returns the validated token claims, or nil if unauthenticated.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// GetSubject returns the authenticated subject, or "" if unauthenticated.
func GetSubject(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
