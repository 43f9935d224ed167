package svc

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var _ error = &RequestError{}

// RequestError is returned when an outbound HTTP request receives an
// unexpected status code.
type RequestError struct {
	Response *http.Response
	Body     []byte
	Err      error
}

func (e *RequestError) Error() string {
	// The body is kept out of the message, it may contain sensitive data.
	return fmt.Sprintf("status: %d, err: %v", e.Response.StatusCode, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// AuthFailureKind enumerates the ways a request can fail authorization.
type AuthFailureKind int

const (
	MissingHeader AuthFailureKind = iota + 1
	MalformedHeader
	UnknownKey
	InvalidSignature
	TokenExpired
	InvalidClaims
	PermissionsClaimMissing
	PermissionDenied
)

var kindNames = map[AuthFailureKind]string{
	MissingHeader:           "missing_header",
	MalformedHeader:         "malformed_header",
	UnknownKey:              "unknown_key",
	InvalidSignature:        "invalid_signature",
	TokenExpired:            "token_expired",
	InvalidClaims:           "invalid_claims",
	PermissionsClaimMissing: "permissions_claim_missing",
	PermissionDenied:        "permission_denied",
}

func (k AuthFailureKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("auth_failure(%d)", int(k))
}

// StatusCode maps the failure to the HTTP status returned to the client.
// Authentication problems are 401, missing permissions are 403.
func (k AuthFailureKind) StatusCode() int {
	switch k {
	case PermissionsClaimMissing, PermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

var _ error = &AuthError{}

// AuthError is returned by the token verifier and the permission gate.
// Description is meant for logs only and must never be sent to clients.
type AuthError struct {
	Kind        AuthFailureKind
	Description string
	Err         error
}

func NewAuthError(kind AuthFailureKind, description string) *AuthError {
	return &AuthError{Kind: kind, Description: description}
}

func WrapAuthError(kind AuthFailureKind, err error, description string) *AuthError {
	return &AuthError{Kind: kind, Description: description, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) StatusCode() int {
	return e.Kind.StatusCode()
}

// IsAuthFailure reports whether err carries an AuthError of the given kind.
func IsAuthFailure(err error, kind AuthFailureKind) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind == kind
	}
	return false
}
