// Package auth authenticates and authorizes callers of the cropadvisor HTTP
// API.
//
// Two credential types are supported: static API keys sent in X-API-Key and
// HMAC-signed JWTs sent as "Authorization: Bearer <token>". Authenticators
// are tried in order by a Chain. Authorization is role based: advisors may
// run steps and advisories, admins may also list runs and prune the store.
//
// When no credentials are configured the API is open and every request is
// served as an anonymous identity holding both roles.
package auth
