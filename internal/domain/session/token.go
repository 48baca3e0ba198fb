package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs and verifies client scoped JWT tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds a token helper using the provided secret.
func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    time.Hour,
	}, nil
}

// WithTTL customises the token expiration duration.
func (t *TokenIssuer) WithTTL(ttl time.Duration) *TokenIssuer {
	if ttl > 0 {
		t.ttl = ttl
	}
	return t
}

// Issue returns a signed JWT bound to the client identifier.
func (t *TokenIssuer) Issue(clientID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"client_id": clientID,
		"exp":       now.Add(t.ttl).Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the JWT and extracts the client identifier.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	clientID, ok := claims["client_id"].(string)
	if !ok || clientID == "" {
		return "", errors.New("missing client_id claim")
	}
	return clientID, nil
}
