package authorizer

import (
	"net/http"

	"github.com/coffeeshop/menu-service/common"
)

// Authorizer decides if a request, made with the given verified claims, may
// perform the action guarded by permission.
// The interface draws some inspiration from Kubernetes' interface:
// https://github.com/kubernetes/apiserver/blob/master/pkg/authorization/authorizer/interfaces.go#L67-L72
type Authorizer interface {
	Authorize(r *http.Request, claims *common.Claims, permission string) (allowed bool, reason string, err error)
}
