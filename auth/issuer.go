package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssuerConfig configures a TokenIssuer.
type IssuerConfig struct {
	Subject  string
	Issuer   string
	Audience string
	Roles    []string

	// TTL is the token lifetime.
	// Default: 5 minutes
	TTL time.Duration
}

// TokenIssuer mints short-lived HS256 tokens for outbound calls.
type TokenIssuer struct {
	config IssuerConfig
	key    []byte
	now    func() time.Time
}

// NewTokenIssuer creates an issuer signing with key.
func NewTokenIssuer(config IssuerConfig, key []byte) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, ErrKeyNotFound
	}
	if config.Subject == "" {
		return nil, ErrMissingSubject
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	return &TokenIssuer{config: config, key: key, now: time.Now}, nil
}

// Token returns a freshly signed token.
func (i *TokenIssuer) Token(_ context.Context) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"sub": i.config.Subject,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(i.config.TTL)),
	}
	if i.config.Issuer != "" {
		claims["iss"] = i.config.Issuer
	}
	if i.config.Audience != "" {
		claims["aud"] = i.config.Audience
	}
	if len(i.config.Roles) > 0 {
		claims["roles"] = i.config.Roles
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
