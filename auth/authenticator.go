package auth

import (
	"context"
	"net/http"
)

// Authenticator validates the credentials of one request.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Authenticate returns (nil, error) for internal errors and a
//   Result with Authenticated false for rejected credentials.
type Authenticator interface {
	// Name identifies the authenticator in logs.
	Name() string

	// Supports reports whether the request carries this authenticator's
	// credential type.
	Supports(ctx context.Context, req *Request) bool

	// Authenticate verifies the request's credentials.
	Authenticate(ctx context.Context, req *Request) (*Result, error)
}

// Request is the credential-bearing part of an HTTP request.
type Request struct {
	Header http.Header
}

// RequestFromHTTP extracts the credentials of r.
func RequestFromHTTP(r *http.Request) *Request {
	return &Request{Header: r.Header}
}

// Get returns the first value of header key.
func (r *Request) Get(key string) string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get(key)
}

// Result is the outcome of an authentication attempt.
type Result struct {
	Authenticated bool
	Identity      *Identity
	Err           error
	Method        Method
}

// Success returns an authenticated result for id.
func Success(id *Identity) *Result {
	return &Result{Authenticated: true, Identity: id, Method: id.Method}
}

// Failure returns a rejected result.
func Failure(err error, method Method) *Result {
	return &Result{Err: err, Method: method}
}

type openAuthenticator struct{}

// Open returns an authenticator that accepts every request as
// AnonymousIdentity.
func Open() Authenticator {
	return openAuthenticator{}
}

func (openAuthenticator) Name() string { return "open" }

func (openAuthenticator) Supports(context.Context, *Request) bool { return true }

func (openAuthenticator) Authenticate(context.Context, *Request) (*Result, error) {
	return Success(AnonymousIdentity()), nil
}
