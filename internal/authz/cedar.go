package authz

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	cedar "github.com/cedar-policy/cedar-go"
)

const (
	cedarNamespace = "Ingestor"
	allTasks       = "*"
)

type cedarAuthorizer struct {
	policySet *cedar.PolicySet
}

// NewCedarAuthorizer parses policyBytes, or the built-in policies when nil
func NewCedarAuthorizer(policyBytes []byte) (Authorizer, error) {
	if policyBytes == nil {
		policyBytes = []byte(defaultPolicies)
	}

	ps, err := cedar.NewPolicySetFromBytes("policies.cedar", policyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Cedar policies: %w", err)
	}
	return &cedarAuthorizer{policySet: ps}, nil
}

// NewCedarAuthorizerFromFile reads the policies from path, or uses the
// built-in policies when path is empty
func NewCedarAuthorizerFromFile(path string) (Authorizer, error) {
	if path == "" {
		return NewCedarAuthorizer(nil)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read Cedar policies: %w", err)
	}
	return NewCedarAuthorizer(data)
}

func (a *cedarAuthorizer) Authorize(ctx context.Context, req Request) (Decision, error) {
	principalUID := cedar.NewEntityUID(cedar.EntityType(cedarNamespace+"::Caller"), cedar.String("authenticated"))

	granted := make([]cedar.Value, len(req.GrantedActions))
	for i, action := range req.GrantedActions {
		granted[i] = cedar.String(action)
	}

	entities := cedar.EntityMap{
		principalUID: cedar.Entity{
			UID: principalUID,
			Attributes: cedar.NewRecord(cedar.RecordMap{
				"grantedActions": cedar.NewSet(granted...),
			}),
		},
	}

	taskName := req.TaskName
	if taskName == "" {
		taskName = allTasks
	}

	decision, diagnostic := cedar.Authorize(a.policySet, entities, cedar.Request{
		Principal: principalUID,
		Action:    cedar.NewEntityUID(cedar.EntityType(cedarNamespace+"::Action"), cedar.String(req.Action)),
		Resource:  cedar.NewEntityUID(cedar.EntityType(cedarNamespace+"::Task"), cedar.String(taskName)),
		Context:   cedar.NewRecord(cedar.RecordMap{}),
	})

	slog.DebugContext(ctx, "Authorization decision",
		"action", req.Action,
		"task", taskName,
		"decision", decision,
		"granted_actions", req.GrantedActions,
	)

	reasons := make([]string, 0, len(diagnostic.Reasons))
	for _, r := range diagnostic.Reasons {
		reasons = append(reasons, string(r.PolicyID))
	}

	return Decision{Allowed: decision == cedar.Allow, Reasons: reasons}, nil
}
