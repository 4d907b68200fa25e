package authz

import (
	"net/http"
	"strings"

	"github.com/tradelens/ingestor/internal/config"
)

// RouteAction returns the action required by a request and the task it
// addresses, if any. Reads are GET requests; any other method triggers work.
func RouteAction(method, path string) (action, task string) {
	if method == http.MethodGet || method == http.MethodHead {
		return config.ActionRead, statusTask(path)
	}
	return config.ActionTrigger, ""
}

// statusTask extracts {task} from /v1/status/{task}
func statusTask(path string) string {
	rest, ok := strings.CutPrefix(path, "/v1/status/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}
