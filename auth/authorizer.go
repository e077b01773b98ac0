package auth

import (
	"context"
	"fmt"
)

// Action is an operation on the API that needs authorization.
type Action string

const (
	ActionStep   Action = "step"
	ActionAdvise Action = "advise"
	ActionStage  Action = "stage"
	ActionRuns   Action = "runs"
	ActionPrune  Action = "prune"
)

// DefaultRoles maps each action to the role it requires.
var DefaultRoles = map[Action]string{
	ActionStep:   RoleAdvisor,
	ActionAdvise: RoleAdvisor,
	ActionStage:  RoleAdvisor,
	ActionRuns:   RoleAdmin,
	ActionPrune:  RoleAdmin,
}

// Authorizer decides whether an identity may perform an action.
type Authorizer interface {
	// Authorize returns nil when allowed, or an error matching ErrForbidden.
	Authorize(ctx context.Context, id *Identity, action Action) error
}

// AuthzError describes a denied action.
type AuthzError struct {
	Principal string
	Action    Action
	Reason    string
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	return fmt.Sprintf("auth: %q may not %s: %s", e.Principal, e.Action, e.Reason)
}

// Is lets errors.Is(err, ErrForbidden) match.
func (e *AuthzError) Is(target error) bool {
	return target == ErrForbidden
}

// RoleAuthorizer allows an action when the identity holds its role.
type RoleAuthorizer struct {
	roles map[Action]string
}

// NewRoleAuthorizer creates an authorizer from an action to role table.
// A nil table uses DefaultRoles.
func NewRoleAuthorizer(roles map[Action]string) *RoleAuthorizer {
	if roles == nil {
		roles = DefaultRoles
	}
	return &RoleAuthorizer{roles: roles}
}

// Authorize checks id against the role required for action. Actions
// missing from the table are denied.
func (a *RoleAuthorizer) Authorize(_ context.Context, id *Identity, action Action) error {
	if id == nil {
		return &AuthzError{Action: action, Reason: "no identity"}
	}
	role, ok := a.roles[action]
	if !ok {
		return &AuthzError{Principal: id.Principal, Action: action, Reason: "unknown action"}
	}
	if !id.HasRole(role) {
		return &AuthzError{Principal: id.Principal, Action: action, Reason: "requires role " + role}
	}
	return nil
}

var _ Authorizer = (*RoleAuthorizer)(nil)
