package middleware

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/coffeeshop/menu-service/authenticators"
	"github.com/coffeeshop/menu-service/authorizer"
	"github.com/coffeeshop/menu-service/common"
	"github.com/coffeeshop/menu-service/logger"
	"github.com/coffeeshop/menu-service/svc"
)

// ClaimsHandlerFunc is a handler that runs only after the request has been
// authenticated and authorized.
type ClaimsHandlerFunc func(w http.ResponseWriter, r *http.Request, claims *common.Claims)

type claimsKey struct{}

// ClaimsFromContext returns the verified claims attached by Require.
func ClaimsFromContext(ctx context.Context) (*common.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*common.Claims)
	return claims, ok
}

// Enforcer guards handlers with a required permission.
type Enforcer struct {
	authn authenticators.Authenticator
	authz authorizer.Authorizer
}

func NewEnforcer(authn authenticators.Authenticator, authz authorizer.Authorizer) *Enforcer {
	return &Enforcer{authn: authn, authz: authz}
}

// Require returns a handler that verifies the bearer token, checks that it
// grants permission and only then calls h. Any failure is answered with a
// generic JSON error and h is never invoked.
func (e *Enforcer) Require(permission string, h ClaimsHandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logger.ForRequest(r).WithField("permission", permission)

		claims, err := e.authn.AuthenticateRequest(r)
		if err != nil {
			logger.Infof("Failed to authenticate request: %v", err)
			common.ReturnJSONError(w, statusFor(err, http.StatusUnauthorized))
			return
		}
		logger = logger.WithField("sub", claims.Subject)

		allowed, reason, err := e.authz.Authorize(r, claims, permission)
		if err != nil || !allowed {
			logger.Infof("Request denied with reason: '%s'", reason)
			common.ReturnJSONError(w, statusFor(err, http.StatusForbidden))
			return
		}
		logger.Debugf("Request authorized: %s", reason)

		r = r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims))
		h(w, r, claims)
	})
}

// statusFor maps a failure to its HTTP status, falling back to def for
// errors that do not carry an AuthFailureKind.
func statusFor(err error, def int) int {
	var authErr *svc.AuthError
	if errors.As(err, &authErr) {
		return authErr.StatusCode()
	}
	return def
}
