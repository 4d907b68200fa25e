package auth

import (
	"path"
	"strings"
)

// DefaultPublicPaths are served without a token when none are configured
var DefaultPublicPaths = []string{"/health", "/readiness", "/version"}

// IsPublicPath reports whether requestPath is one of publicPaths or below one
// of them. Matching is done per path segment on the cleaned path, so /health
// covers /health/live but not /healthz. Encoded separators never match.
func IsPublicPath(requestPath string, publicPaths []string) bool {
	lower := strings.ToLower(requestPath)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%2e") {
		return false
	}

	clean := rooted(requestPath)
	for _, p := range publicPaths {
		public := rooted(p)
		if public == "/" || clean == public || strings.HasPrefix(clean, public+"/") {
			return true
		}
	}
	return false
}

func rooted(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
