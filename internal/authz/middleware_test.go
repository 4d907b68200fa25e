package authz_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tradelens/ingestor/internal/auth"
	"github.com/tradelens/ingestor/internal/authz"
	"github.com/tradelens/ingestor/internal/authz/mocks"
	"github.com/tradelens/ingestor/internal/config"
)

// withClaims authenticates every request with claims, the way the auth
// middleware does for a valid token
func withClaims(t *testing.T, claims jwt.MapClaims) func(http.Handler) http.Handler {
	t.Helper()

	secret := []byte("0123456789abcdef0123456789abcdef")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	t.Setenv("INGESTOR_AUTH_TEST_SECRET", string(secret))
	authMw, err := auth.NewAuthMiddleware(&config.AuthConfig{
		Mode: config.AuthModeJWT,
		Keys: []config.JWTKeyConfig{{Name: "test"}},
	}, auth.DefaultValidatorFactory)
	require.NoError(t, err)

	return func(next http.Handler) http.Handler {
		wrapped := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
			wrapped.ServeHTTP(w, r)
		})
	}
}

func serve(handler http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

//nolint:paralleltest // sets the signing secret through the environment
func TestMiddleware_DefaultPolicies(t *testing.T) {
	authzMw, err := authz.NewMiddleware(&config.AuthzConfig{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		scope  string
		method string
		path   string
		want   int
	}{
		{name: "reader reads status", scope: "ingestor:read", method: http.MethodGet, path: "/v1/status", want: http.StatusOK},
		{name: "reader reads task", scope: "ingestor:read", method: http.MethodGet, path: "/v1/status/ohlcv", want: http.StatusOK},
		{name: "reader cannot trigger", scope: "ingestor:read", method: http.MethodPost, path: "/v1/runs", want: http.StatusForbidden},
		{name: "operator triggers", scope: "openid ingestor:trigger", method: http.MethodPost, path: "/v1/runs", want: http.StatusOK},
		{name: "no scopes", scope: "", method: http.MethodGet, path: "/v1/runs/last", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := jwt.MapClaims{"sub": "caller", "exp": float64(4102444800)}
			if tt.scope != "" {
				claims["scope"] = tt.scope
			}
			handler := withClaims(t, claims)(authzMw(okHandler()))

			rec := serve(handler, tt.method, tt.path)
			assert.Equal(t, tt.want, rec.Code)

			if tt.want == http.StatusForbidden {
				var resp authz.ForbiddenResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "forbidden", resp.Error)
				require.NotNil(t, resp.Details)
				assert.Contains(t, resp.Details.Hint, "ingestor:trigger")
			}
		})
	}
}

func TestMiddleware_PassesUnauthenticatedRequests(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	authorizer := mocks.NewMockAuthorizer(ctrl)

	rec := serve(authz.Middleware(authorizer, config.DefaultScopeMapping)(okHandler()), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

//nolint:paralleltest // sets the signing secret through the environment
func TestMiddleware_AuthorizerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	authorizer := mocks.NewMockAuthorizer(ctrl)
	authorizer.EXPECT().
		Authorize(gomock.Any(), authz.Request{GrantedActions: []string{config.ActionRead}, Action: config.ActionRead, TaskName: "ohlcv"}).
		Return(authz.Decision{}, errors.New("evaluation failed"))

	handler := withClaims(t, jwt.MapClaims{"scope": "ingestor:read", "exp": float64(4102444800)})(
		authz.Middleware(authorizer, config.DefaultScopeMapping)(okHandler()))

	rec := serve(handler, http.MethodGet, "/v1/status/ohlcv")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "authorization evaluation failed")
}

func TestNewMiddleware_Disabled(t *testing.T) {
	t.Parallel()

	mw, err := authz.NewMiddleware(nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(mw(okHandler()), http.MethodPost, "/v1/runs").Code)
}

func TestRouteAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method, path string
		wantAction   string
		wantTask     string
	}{
		{http.MethodGet, "/v1/status", config.ActionRead, ""},
		{http.MethodGet, "/v1/status/discord", config.ActionRead, "discord"},
		{http.MethodGet, "/v1/status/discord/extra", config.ActionRead, ""},
		{http.MethodHead, "/v1/runs/last", config.ActionRead, ""},
		{http.MethodPost, "/v1/runs", config.ActionTrigger, ""},
		{http.MethodDelete, "/v1/status/discord", config.ActionTrigger, ""},
	}

	for _, tt := range tests {
		action, task := authz.RouteAction(tt.method, tt.path)
		assert.Equal(t, tt.wantAction, action, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.wantTask, task, "%s %s", tt.method, tt.path)
	}
}

func TestScopes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, authz.ExtractScopes(map[string]any{"scope": "a  b"}))
	assert.Equal(t, []string{"a", "c"}, authz.ExtractScopes(map[string]any{"scp": []any{"a", 1, "c"}}))
	assert.Nil(t, authz.ExtractScopes(map[string]any{"sub": "x"}))

	assert.Equal(t, []string{config.ActionRead, config.ActionTrigger},
		authz.MapScopesToActions([]string{"ingestor:read", "ingestor:trigger"}, config.DefaultScopeMapping))
	assert.Empty(t, authz.MapScopesToActions([]string{"openid"}, config.DefaultScopeMapping))
}
