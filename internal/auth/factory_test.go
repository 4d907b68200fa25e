package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelens/ingestor/internal/config"
)

func TestNewAuthMiddleware_Anonymous(t *testing.T) {
	t.Parallel()

	for _, cfg := range []*config.AuthConfig{nil, {}, {Mode: config.AuthModeAnonymous}} {
		mw, err := NewAuthMiddleware(cfg, DefaultValidatorFactory)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestNewAuthMiddleware_UnsupportedMode(t *testing.T) {
	t.Parallel()

	_, err := NewAuthMiddleware(&config.AuthConfig{Mode: "oauth"}, DefaultValidatorFactory)
	assert.EqualError(t, err, "unsupported auth mode: oauth")
}

func TestNewAuthMiddleware_JWT(t *testing.T) {
	t.Parallel()

	secretFile := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(secretFile, append(testSecret, '\n'), 0600))

	mw, err := NewAuthMiddleware(&config.AuthConfig{
		Mode: config.AuthModeJWT,
		Keys: []config.JWTKeyConfig{{Name: "primary", SecretFile: secretFile, Audience: "ingestor"}},
	}, DefaultValidatorFactory)
	require.NoError(t, err)
	handler := mw(okHandler())

	serve := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve("/health", ""))
	assert.Equal(t, http.StatusOK, serve("/version", ""))
	assert.Equal(t, http.StatusUnauthorized, serve("/v1/status", ""))
	assert.Equal(t, http.StatusOK, serve("/v1/status", signToken(t, jwt.SigningMethodHS256, testSecret, validClaims())))
}

func TestNewAuthMiddleware_MissingSecret(t *testing.T) {
	t.Parallel()

	_, err := NewAuthMiddleware(&config.AuthConfig{
		Mode: config.AuthModeJWT,
		Keys: []config.JWTKeyConfig{{Name: "primary", SecretFile: filepath.Join(t.TempDir(), "missing")}},
	}, DefaultValidatorFactory)
	assert.ErrorContains(t, err, "failed to read secret")
}
