package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/cropadvisor/observe"
)

// Middleware authenticates every request with a and stores the identity in
// the request context. Rejected requests get 401.
func Middleware(a Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NoopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			res, err := a.Authenticate(ctx, RequestFromHTTP(r))
			if err != nil {
				logger.Error(ctx, "authentication error",
					observe.Field{Key: "authenticator", Value: a.Name()},
					observe.Field{Key: "error", Value: err.Error()},
				)
				writeError(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}
			if !res.Authenticated {
				reason := ErrMissingCredentials
				if res.Err != nil {
					reason = res.Err
				}
				logger.Debug(ctx, "request rejected",
					observe.Field{Key: "auth.method", Value: string(res.Method)},
					observe.Field{Key: "error", Value: reason.Error()},
				)
				writeError(w, http.StatusUnauthorized, reason.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, res.Identity)))
		})
	}
}

// Require allows the request through only when authz permits action for
// the identity in the request context. Denied requests get 403.
func Require(authz Authorizer, action Action, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := authz.Authorize(r.Context(), IdentityFromContext(r.Context()), action)
		if err != nil {
			status := http.StatusForbidden
			if !errors.Is(err, ErrForbidden) {
				status = http.StatusInternalServerError
			}
			writeError(w, status, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
