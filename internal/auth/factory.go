package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tradelens/ingestor/internal/config"
)

// NewAuthMiddleware creates the authentication middleware for cfg. A nil
// config or anonymous mode passes every request through. In jwt mode the
// public paths, or DefaultPublicPaths, bypass authentication.
func NewAuthMiddleware(cfg *config.AuthConfig, factory validatorFactory) (func(http.Handler) http.Handler, error) {
	switch cfg.GetMode() {
	case config.AuthModeAnonymous:
		slog.Info("API authentication disabled (anonymous mode)")
		return anonymousMiddleware, nil
	case config.AuthModeJWT:
		return createJWTMiddleware(cfg, factory)
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

func createJWTMiddleware(cfg *config.AuthConfig, factory validatorFactory) (func(http.Handler) http.Handler, error) {
	keys := make([]keyConfig, 0, len(cfg.Keys))
	for i := range cfg.Keys {
		k := &cfg.Keys[i]
		secret, err := k.GetSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to read secret: %w", err)
		}
		keys = append(keys, keyConfig{Name: k.Name, Secret: secret, Issuer: k.Issuer, Audience: k.Audience})
	}

	m, err := newJWTMiddleware(keys, cfg.Realm, factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create jwt middleware: %w", err)
	}

	publicPaths := cfg.PublicPaths
	if len(publicPaths) == 0 {
		publicPaths = DefaultPublicPaths
	}

	slog.Info("API authentication enabled (jwt mode)", "keys", len(keys), "public_paths", publicPaths)
	return WrapWithPublicPaths(m.Middleware, publicPaths), nil
}

// anonymousMiddleware passes requests through without authentication
func anonymousMiddleware(next http.Handler) http.Handler {
	return next
}
