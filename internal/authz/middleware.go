package authz

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/tradelens/ingestor/internal/auth"
	"github.com/tradelens/ingestor/internal/config"
)

// ForbiddenResponse is the JSON body returned when authorization is denied
type ForbiddenResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Details *ForbiddenDetail `json:"details,omitempty"`
}

// ForbiddenDetail tells the caller which action was required and which
// scopes would grant it
type ForbiddenDetail struct {
	RequiredAction string   `json:"required_action"`
	UserScopes     []string `json:"user_scopes"`
	Hint           string   `json:"hint"`
}

// NewMiddleware creates the authorization middleware for cfg. A nil config
// disables authorization.
func NewMiddleware(cfg *config.AuthzConfig) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		return NoopMiddleware(), nil
	}

	authorizer, err := NewCedarAuthorizerFromFile(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	slog.Info("API authorization enabled", "policy_file", cfg.PolicyFile)
	return Middleware(authorizer, cfg.GetScopeMapping()), nil
}

// Middleware authorizes requests carrying token claims. Requests without
// claims bypassed authentication on a public path and pass through.
func Middleware(authorizer Authorizer, scopeMapping []config.ScopeMappingEntry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			scopes := ExtractScopes(claims)
			granted := MapScopesToActions(scopes, scopeMapping)
			action, task := RouteAction(r.Method, r.URL.Path)
			subject := claims["sub"]

			decision, err := authorizer.Authorize(r.Context(), Request{
				GrantedActions: granted,
				Action:         action,
				TaskName:       task,
			})
			if err != nil {
				slog.ErrorContext(r.Context(), "Authorization evaluation failed",
					"error", err,
					"action", action,
					"path", r.URL.Path,
					"subject", subject)
				writeJSONError(w, http.StatusInternalServerError, "authorization evaluation failed")
				return
			}

			if !decision.Allowed {
				slog.WarnContext(r.Context(), "Authorization denied",
					"action", action,
					"path", r.URL.Path,
					"method", r.Method,
					"subject", subject,
					"scopes", scopes,
					"granted_actions", granted)
				writeForbidden(w, action, scopes, scopeMapping)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NoopMiddleware performs no authorization checks
func NoopMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

func writeForbidden(w http.ResponseWriter, action string, scopes []string, mapping []config.ScopeMappingEntry) {
	if scopes == nil {
		scopes = []string{}
	}
	writeJSON(w, http.StatusForbidden, ForbiddenResponse{
		Error:   "forbidden",
		Message: "You do not have permission to perform this action.",
		Details: &ForbiddenDetail{
			RequiredAction: action,
			UserScopes:     scopes,
			Hint:           buildHint(action, mapping),
		},
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// buildHint names the scopes granting action
func buildHint(action string, mapping []config.ScopeMappingEntry) string {
	var scopes []string
	for _, entry := range mapping {
		if slices.Contains(entry.Actions, action) {
			scopes = append(scopes, entry.Scope)
		}
	}
	if len(scopes) == 0 {
		return "No configured scopes grant the required action."
	}
	return fmt.Sprintf("This operation requires one of the following scopes: %s", strings.Join(scopes, ", "))
}
