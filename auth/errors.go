package auth

import "errors"

var (
	// ErrMissingCredentials indicates a request without usable credentials.
	ErrMissingCredentials = errors.New("auth: missing credentials")

	// ErrInvalidCredentials indicates credentials that did not verify.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenExpired indicates an expired token or key.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrTokenMalformed indicates a token that could not be parsed.
	ErrTokenMalformed = errors.New("auth: token malformed")

	// ErrForbidden indicates an authenticated caller without the needed role.
	ErrForbidden = errors.New("auth: access denied")
)
