package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	key    []byte
	expiry time.Duration
	issuer string
}

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// NewJWTManager signs with a key derived from secret, never the raw secret.
func NewJWTManager(secret string, expiry time.Duration, issuer string) (*JWTManager, error) {
	key, err := DeriveSessionKey([]byte(secret))
	if err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return &JWTManager{
		key:    key,
		expiry: expiry,
		issuer: issuer,
	}, nil
}

// Generate signs a token for subject that expires after the default expiry.
func (m *JWTManager) Generate(subject string, role Role, email string) (string, error) {
	return m.GenerateWithTTL(subject, role, email, m.expiry)
}

func (m *JWTManager) GenerateWithTTL(subject string, role Role, email string, ttl time.Duration) (string, error) {
	if subject == "" || role == "" || ttl <= 0 {
		return "", ErrInvalidToken
	}

	now := time.Now()
	claims := &Claims{
		Role:  string(role),
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func TokenFromHeader(authHeader string) (string, error) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}
