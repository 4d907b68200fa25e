// Package auth provides bearer token authentication for the ingestor API.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// errAllKeysFailed indicates no configured key validated the token
var errAllKeysFailed = errors.New("no key validated the token")

// RFC 6750 Section 3 error codes
const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeInvalidToken   = "invalid_token"
)

// defaultRealm is the default protection space identifier
const defaultRealm = "ingestor"

type claimsKey struct{}

// ClaimsFromContext returns the claims of the authenticated request, if any
func ClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	return claims, ok
}

type namedValidator struct {
	name      string
	validator tokenValidator
}

// jwtMiddleware authenticates requests against a list of keys tried in order
type jwtMiddleware struct {
	validators []namedValidator
	realm      string
}

func newJWTMiddleware(keys []keyConfig, realm string, factory validatorFactory) (*jwtMiddleware, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one key must be configured")
	}
	if realm == "" {
		realm = defaultRealm
	}

	m := &jwtMiddleware{
		validators: make([]namedValidator, 0, len(keys)),
		realm:      realm,
	}
	for _, k := range keys {
		v, err := factory(k)
		if err != nil {
			return nil, fmt.Errorf("failed to create validator for key %q: %w", k.Name, err)
		}
		m.validators = append(m.validators, namedValidator{name: k.Name, validator: v})
	}
	return m, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// claims of accepted ones in the request context
func (m *jwtMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			slog.WarnContext(r.Context(), "Token extraction failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, http.StatusUnauthorized, errorCodeInvalidRequest, "missing or malformed authorization header")
			return
		}

		key, claims, err := m.validateToken(r.Context(), token)
		if err != nil {
			slog.WarnContext(r.Context(), "Token validation failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, http.StatusUnauthorized, errorCodeInvalidToken, "token validation failed")
			return
		}

		slog.DebugContext(r.Context(), "Authentication successful",
			"key", key,
			"subject", claims["sub"],
			"path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (m *jwtMiddleware) validateToken(ctx context.Context, token string) (string, jwt.MapClaims, error) {
	errs := make([]error, 0, len(m.validators))
	for _, nv := range m.validators {
		claims, err := nv.validator.ValidateToken(ctx, token)
		if err != nil {
			slog.DebugContext(ctx, "Key failed to validate token", "key", nv.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", nv.name, err))
			continue
		}
		return nv.name, claims, nil
	}
	return "", nil, errors.Join(append([]error{errAllKeysFailed}, errs...)...)
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("authorization header is missing")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("authorization header is not a bearer token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("bearer token is empty")
	}
	return token, nil
}

// sanitizeHeaderValue strips line breaks and escapes quotes for a quoted-string
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	return strings.NewReplacer("\r", "", "\n", "", `"`, `\"`).Replace(s)
}

// writeError writes a JSON error with an RFC 6750 WWW-Authenticate challenge
func (m *jwtMiddleware) writeError(w http.ResponseWriter, status int, errCode, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s", error="%s", error_description="%s"`,
		sanitizeHeaderValue(m.realm), errCode, sanitizeHeaderValue(description)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: description}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// WrapWithPublicPaths bypasses authMw for requests to publicPaths
func WrapWithPublicPaths(
	authMw func(http.Handler) http.Handler,
	publicPaths []string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		authWrappedNext := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}
			authWrappedNext.ServeHTTP(w, r)
		})
	}
}
