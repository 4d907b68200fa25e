package auth

//go:generate mockgen -destination=mocks/mock_validator.go -package=mocks -source=validator.go tokenValidator

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// tokenValidator checks a raw bearer token and returns its claims
type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (jwt.MapClaims, error)
}

// keyConfig is a resolved HMAC key
type keyConfig struct {
	Name     string
	Secret   []byte
	Issuer   string
	Audience string
}

// validatorFactory creates a validator for one key
type validatorFactory func(cfg keyConfig) (tokenValidator, error)

// DefaultValidatorFactory validates HMAC signed tokens with golang-jwt
var DefaultValidatorFactory validatorFactory = newHMACValidator

// hmacValidator accepts HS256, HS384 and HS512 tokens signed with one secret
type hmacValidator struct {
	secret []byte
	parser *jwt.Parser
}

func newHMACValidator(cfg keyConfig) (tokenValidator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("secret cannot be empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &hmacValidator{secret: cfg.Secret, parser: jwt.NewParser(opts...)}, nil
}

func (v *hmacValidator) ValidateToken(_ context.Context, token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
