// Package auth issues and validates the bearer tokens that guard the admin API.
//
// Tokens are short-lived HS256 JWTs carrying a subject and a role. There are
// no refresh tokens: operators mint a new token with `aqictl token` when one
// expires.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenExpiry is how long access tokens are valid unless configured otherwise.
const DefaultTokenExpiry = time.Hour

// Roles.
const (
	RoleAdmin  = "admin"
	RoleReader = "reader"
)

// Predefined JWT errors.
var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingSigningKey  = errors.New("jwt signing key is not configured")
)

// Claims represents the claims in API access tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Role grants access to route groups.
	Role string `json:"role"`
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the secret key used to sign JWTs.
	SigningKey string

	// Issuer is the issuer claim for tokens (e.g., "https://api.airadvisor.dev").
	Issuer string

	// Audience is the audience claim for tokens (e.g., "airadvisor-api").
	Audience string

	// Expiry overrides DefaultTokenExpiry.
	Expiry time.Duration
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	expiry     time.Duration
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	expiry := cfg.Expiry
	if expiry == 0 {
		expiry = DefaultTokenExpiry
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		expiry:     expiry,
	}
}

// GenerateAccessToken creates a token for subject with the given role.
func (s *JWTService) GenerateAccessToken(subject, role string) (string, time.Time, error) {
	if len(s.signingKey) == 0 {
		return "", time.Time{}, ErrMissingSigningKey
	}

	now := time.Now()
	expiresAt := now.Add(s.expiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateAccessToken validates an access token and returns its claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	if len(s.signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

func generateTokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
