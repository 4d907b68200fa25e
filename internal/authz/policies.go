package authz

// defaultPolicies grant each action to callers whose scopes map to it. A
// custom policy file can narrow this, e.g. to single tasks.
const defaultPolicies = `
permit(
  principal,
  action == Ingestor::Action::"read",
  resource
) when {
  principal.grantedActions.contains("read")
};

permit(
  principal,
  action == Ingestor::Action::"trigger",
  resource
) when {
  principal.grantedActions.contains("trigger")
};
`
