// Package authz provides Cedar-based authorization for the ingestor API.
package authz

import "context"

//go:generate mockgen -destination=mocks/mock_authorizer.go -package=mocks -source=authorizer.go Authorizer

// Authorizer evaluates authorization decisions
type Authorizer interface {
	// Authorize checks whether a caller holding GrantedActions may perform
	// Action on the resource
	Authorize(ctx context.Context, req Request) (Decision, error)
}

// Request represents an authorization request
type Request struct {
	// GrantedActions are the actions the caller's scopes map to
	GrantedActions []string

	// Action is the action the route requires (read, trigger)
	Action string

	// TaskName is the task the route addresses, empty for all tasks
	TaskName string
}

// Decision represents the result of an authorization check
type Decision struct {
	Allowed bool

	// Reasons lists the policy ids that contributed to the decision
	Reasons []string
}
