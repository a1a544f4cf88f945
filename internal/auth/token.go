package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "teslo/internal/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Errors for token management
var (
	ErrMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = apperrors.Public(apperrors.ErrAuthentication, "Token not valid")
)

// TokenConfig holds token manager configuration
type TokenConfig struct {
	Secret []byte
	// TTL is how long an issued token stays valid.
	TTL time.Duration
}

// Claims is the JWT payload. ID is the user id.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	return &TokenManager{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		now:    time.Now,
	}, nil
}

// Sign issues a token for userID.
func (m *TokenManager) Sign(userID string) (string, error) {
	now := m.now()
	claims := Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature and expiry and returns the user id carried by token.
func (m *TokenManager) Verify(token string) (string, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}

// BearerToken extracts the token from an Authorization header value. A bare
// token without the scheme is accepted as well.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}
