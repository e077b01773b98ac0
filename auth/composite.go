package auth

import "context"

// Chain tries authenticators in order and returns the first success.
type Chain struct {
	authenticators []Authenticator
}

// NewChain creates a chain of authenticators.
func NewChain(auths ...Authenticator) *Chain {
	return &Chain{authenticators: auths}
}

// Name returns "chain".
func (c *Chain) Name() string {
	return "chain"
}

// Supports reports whether any authenticator supports the request.
func (c *Chain) Supports(ctx context.Context, req *Request) bool {
	for _, a := range c.authenticators {
		if a.Supports(ctx, req) {
			return true
		}
	}
	return false
}

// Authenticate returns the first successful result. When none succeeds it
// returns the last rejection, or ErrMissingCredentials when no
// authenticator supported the request. Internal errors stop the chain.
func (c *Chain) Authenticate(ctx context.Context, req *Request) (*Result, error) {
	var last *Result
	for _, a := range c.authenticators {
		if !a.Supports(ctx, req) {
			continue
		}
		res, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if res.Authenticated {
			return res, nil
		}
		last = res
	}
	if last != nil {
		return last, nil
	}
	return Failure(ErrMissingCredentials, ""), nil
}

var _ Authenticator = (*Chain)(nil)
