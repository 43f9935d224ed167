package authenticators

import (
	"net/http"

	"github.com/coffeeshop/menu-service/common"
)

// Authenticator verifies the credentials carried by a request. Failures are
// reported as *svc.AuthError so callers can map them to a status code.
type Authenticator interface {
	AuthenticateRequest(r *http.Request) (*common.Claims, error)
}

var _ Authenticator = &JWTTokenAuthenticator{}
