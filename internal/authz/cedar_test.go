package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelens/ingestor/internal/config"
)

func TestCedarAuthorizer_DefaultPolicies(t *testing.T) {
	t.Parallel()

	authorizer, err := NewCedarAuthorizer(nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		granted []string
		action  string
		task    string
		want    bool
	}{
		{name: "read with read", granted: []string{config.ActionRead}, action: config.ActionRead, want: true},
		{name: "read one task", granted: []string{config.ActionRead}, action: config.ActionRead, task: "ohlcv", want: true},
		{name: "trigger with read only", granted: []string{config.ActionRead}, action: config.ActionTrigger, want: false},
		{name: "trigger with trigger", granted: []string{config.ActionRead, config.ActionTrigger}, action: config.ActionTrigger, want: true},
		{name: "nothing granted", granted: nil, action: config.ActionRead, want: false},
		{name: "unknown action", granted: []string{config.ActionRead, config.ActionTrigger}, action: "admin", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decision, err := authorizer.Authorize(context.Background(), Request{
				GrantedActions: tt.granted,
				Action:         tt.action,
				TaskName:       tt.task,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision.Allowed)
			if tt.want {
				assert.NotEmpty(t, decision.Reasons)
			}
		})
	}
}

func TestCedarAuthorizer_CustomPolicyPerTask(t *testing.T) {
	t.Parallel()

	policy := `
permit(
  principal,
  action == Ingestor::Action::"read",
  resource == Ingestor::Task::"ohlcv"
) when {
  principal.grantedActions.contains("read")
};
`
	path := filepath.Join(t.TempDir(), "policies.cedar")
	require.NoError(t, os.WriteFile(path, []byte(policy), 0600))

	authorizer, err := NewCedarAuthorizerFromFile(path)
	require.NoError(t, err)

	granted := []string{config.ActionRead}
	ohlcv, err := authorizer.Authorize(context.Background(), Request{GrantedActions: granted, Action: config.ActionRead, TaskName: "ohlcv"})
	require.NoError(t, err)
	assert.True(t, ohlcv.Allowed)

	discord, err := authorizer.Authorize(context.Background(), Request{GrantedActions: granted, Action: config.ActionRead, TaskName: "discord"})
	require.NoError(t, err)
	assert.False(t, discord.Allowed)

	all, err := authorizer.Authorize(context.Background(), Request{GrantedActions: granted, Action: config.ActionRead})
	require.NoError(t, err)
	assert.False(t, all.Allowed)
}

func TestNewCedarAuthorizer_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewCedarAuthorizer([]byte("permit(principal,"))
	assert.ErrorContains(t, err, "failed to parse Cedar policies")

	_, err = NewCedarAuthorizerFromFile(filepath.Join(t.TempDir(), "missing.cedar"))
	assert.ErrorContains(t, err, "failed to read Cedar policies")
}
