package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/coffeeshop/menu-service/authenticators"
	"github.com/coffeeshop/menu-service/authorizer"
	"github.com/coffeeshop/menu-service/common"
	"github.com/coffeeshop/menu-service/keyset/keysettest"
	"github.com/coffeeshop/menu-service/middleware"
)

const permission = "get:drinks-detail"

func newTestEnforcer(t *testing.T, a *keysettest.Authority) *middleware.Enforcer {
	authn := authenticators.NewJWTTokenAuthenticator(
		"Authorization",
		keysettest.Audience,
		keysettest.Issuer,
		"RS256",
		a.KeySet(t),
	)
	return middleware.NewEnforcer(authn, authorizer.NewPermissionsAuthorizer())
}

func TestRequire(t *testing.T) {
	authority := keysettest.NewAuthority(t, "key-1")
	other := keysettest.NewAuthority(t, "key-2")
	enforcer := newTestEnforcer(t, authority)

	tests := []struct {
		name          string
		header        string
		expectStatus  int
		expectMessage string
		expectCalled  bool
	}{
		{
			name:         "granted",
			header:       "Bearer " + authority.Token(t, "get:drinks", permission),
			expectStatus: http.StatusTeapot,
			expectCalled: true,
		},
		{
			name:          "no header",
			expectStatus:  http.StatusUnauthorized,
			expectMessage: "Unauthorized",
		},
		{
			name:          "malformed header",
			header:        "Malformed abc",
			expectStatus:  http.StatusUnauthorized,
			expectMessage: "Unauthorized",
		},
		{
			name:          "unknown key",
			header:        "Bearer " + other.Token(t, permission),
			expectStatus:  http.StatusUnauthorized,
			expectMessage: "Unauthorized",
		},
		{
			name:          "expired",
			header:        "Bearer " + authority.Sign(t, keysettest.Claims(time.Now().Add(-time.Minute))),
			expectStatus:  http.StatusUnauthorized,
			expectMessage: "Unauthorized",
		},
		{
			name:          "permission missing from token",
			header:        "Bearer " + authority.Token(t, "get:drinks"),
			expectStatus:  http.StatusForbidden,
			expectMessage: "Forbidden",
		},
		{
			name:          "empty permissions",
			header:        "Bearer " + authority.Token(t),
			expectStatus:  http.StatusForbidden,
			expectMessage: "Forbidden",
		},
		{
			name:          "no permissions claim",
			header:        "Bearer " + authority.Sign(t, keysettest.Claims(time.Now().Add(time.Hour))),
			expectStatus:  http.StatusForbidden,
			expectMessage: "Forbidden",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			called := false
			h := enforcer.Require(permission, func(w http.ResponseWriter, r *http.Request, claims *common.Claims) {
				called = true
				require.Equal(t, "auth0|barista", claims.Subject)
				fromCtx, ok := middleware.ClaimsFromContext(r.Context())
				require.True(t, ok)
				require.Equal(t, claims, fromCtx)
				w.Header().Set("X-Handler", "drinks")
				w.WriteHeader(http.StatusTeapot)
				w.Write([]byte("brewed"))
			})

			req := httptest.NewRequest(http.MethodGet, "/drinks-detail", nil)
			if test.header != "" {
				req.Header.Set("Authorization", test.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, test.expectCalled, called)
			require.Equal(t, test.expectStatus, rec.Code)
			if test.expectCalled {
				require.Equal(t, "drinks", rec.Header().Get("X-Handler"))
				require.Equal(t, "brewed", rec.Body.String())
				return
			}
			var body common.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, common.ErrorResponse{
				Success: false,
				Error:   test.expectStatus,
				Message: test.expectMessage,
			}, body)
		})
	}
}

type staticAuthenticator struct {
	claims *common.Claims
	err    error
}

func (s staticAuthenticator) AuthenticateRequest(*http.Request) (*common.Claims, error) {
	return s.claims, s.err
}

type staticAuthorizer struct {
	allowed bool
	err     error
}

func (s staticAuthorizer) Authorize(*http.Request, *common.Claims, string) (bool, string, error) {
	return s.allowed, "static", s.err
}

func TestRequireUntypedErrors(t *testing.T) {
	tests := []struct {
		name         string
		authn        authenticators.Authenticator
		authz        authorizer.Authorizer
		expectStatus int
	}{
		{
			name:         "authenticator error",
			authn:        staticAuthenticator{err: errors.New("boom")},
			authz:        staticAuthorizer{allowed: true},
			expectStatus: http.StatusUnauthorized,
		},
		{
			name:         "authorizer error",
			authn:        staticAuthenticator{claims: &common.Claims{}},
			authz:        staticAuthorizer{err: errors.New("boom")},
			expectStatus: http.StatusForbidden,
		},
		{
			name:         "authorizer denies without error",
			authn:        staticAuthenticator{claims: &common.Claims{}},
			authz:        staticAuthorizer{},
			expectStatus: http.StatusForbidden,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := middleware.NewEnforcer(test.authn, test.authz).Require(permission,
				func(w http.ResponseWriter, r *http.Request, claims *common.Claims) {
					t.Fatal("handler must not be invoked")
				})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, test.expectStatus, rec.Code)
		})
	}
}

func TestClaimsFromContextEmpty(t *testing.T) {
	_, ok := middleware.ClaimsFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.False(t, ok)
}
