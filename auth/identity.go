package auth

import (
	"slices"
	"time"
)

// Method indicates how a caller was authenticated.
type Method string

const (
	MethodJWT       Method = "jwt"
	MethodAPIKey    Method = "api_key"
	MethodAnonymous Method = "anonymous"
)

// Roles.
const (
	// RoleAdvisor may run steps, advisories and stage computations.
	RoleAdvisor = "advisor"

	// RoleAdmin may additionally list runs and prune stored artifacts.
	RoleAdmin = "admin"
)

// Identity is an authenticated caller.
type Identity struct {
	// Principal identifies the caller (JWT subject or API key id).
	Principal string

	// Roles granted to the caller.
	Roles []string

	// Method records how the caller authenticated.
	Method Method

	// ExpiresAt is when the credential expires. Zero means never.
	ExpiresAt time.Time
}

// HasRole reports whether the identity holds role. Admins hold every role.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	return slices.Contains(id.Roles, role) || slices.Contains(id.Roles, RoleAdmin)
}

// IsAnonymous reports whether the identity came from an open API.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Method == MethodAnonymous
}

// AnonymousIdentity is the identity used when authentication is disabled.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Roles:     []string{RoleAdvisor, RoleAdmin},
		Method:    MethodAnonymous,
	}
}
