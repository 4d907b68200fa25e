package authz

import (
	"slices"
	"strings"

	"github.com/tradelens/ingestor/internal/config"
)

// ExtractScopes reads the scopes of a token from the space separated "scope"
// claim or the "scp" array claim
func ExtractScopes(claims map[string]any) []string {
	if scope, ok := claims["scope"].(string); ok && scope != "" {
		return strings.Fields(scope)
	}

	if scp, ok := claims["scp"].([]any); ok {
		scopes := make([]string, 0, len(scp))
		for _, s := range scp {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	}

	return nil
}

// MapScopesToActions returns the sorted set of actions granted by scopes
func MapScopesToActions(scopes []string, mapping []config.ScopeMappingEntry) []string {
	var actions []string
	for _, entry := range mapping {
		if !slices.Contains(scopes, entry.Scope) {
			continue
		}
		for _, action := range entry.Actions {
			if !slices.Contains(actions, action) {
				actions = append(actions, action)
			}
		}
	}
	slices.Sort(actions)
	return actions
}
