package authorizer

import (
	"fmt"
	"net/http"

	"github.com/emirpasic/gods/sets/hashset"

	"github.com/coffeeshop/menu-service/common"
	"github.com/coffeeshop/menu-service/svc"
)

// CheckPermission requires the exact permission string to be present in the
// token's permissions claim. There are no wildcards and no hierarchy.
func CheckPermission(claims *common.Claims, permission string) error {
	if claims == nil || !claims.HasPermissions() {
		return svc.NewAuthError(svc.PermissionsClaimMissing,
			"permissions not included in the token")
	}
	granted := hashset.New()
	for _, p := range claims.Permissions {
		granted.Add(p)
	}
	if !granted.Contains(permission) {
		return svc.NewAuthError(svc.PermissionDenied,
			fmt.Sprintf("permission %q not granted", permission))
	}
	return nil
}

type permissionsAuthorizer struct{}

// NewPermissionsAuthorizer returns an Authorizer backed by CheckPermission.
// A denial is reported through err as a *svc.AuthError, with the reason
// repeated for logging.
func NewPermissionsAuthorizer() Authorizer {
	return permissionsAuthorizer{}
}

func (permissionsAuthorizer) Authorize(r *http.Request, claims *common.Claims, permission string) (bool, string, error) {
	if err := CheckPermission(claims, permission); err != nil {
		reason := err.Error()
		if authErr, ok := err.(*svc.AuthError); ok {
			reason = authErr.Description
		}
		return false, reason, err
	}
	return true, fmt.Sprintf("granted %s", permission), nil
}
